package main

// liveScript connects a served page to its live session. It swaps the
// content on every pushed cycle, sends theme changes, and scrolls table of
// contents links below the navigation bar.
const liveScript = `(function () {
  var self = document.currentScript;
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var url = proto + location.host + self.dataset.ws + "&theme=" + encodeURIComponent(self.dataset.theme || "");
  var ws;

  function $(sel) { return document.querySelector(sel); }

  function ensureStylesheet(href) {
    if (!href || document.querySelector('link[href="' + href + '"]')) return;
    var link = document.createElement("link");
    link.rel = "stylesheet";
    link.href = href;
    document.head.appendChild(link);
  }

  function runDiagrams(src) {
    if (!src) return;
    var run = function () {
      if (!window.mermaid) return;
      window.mermaid.initialize({ startOnLoad: false, theme: document.body.dataset.theme === "dark" ? "dark" : "default" });
      window.mermaid.run({ querySelector: "pre.mermaid" });
    };
    if (window.mermaid) { run(); return; }
    var script = document.createElement("script");
    script.src = src;
    script.onload = run;
    document.head.appendChild(script);
  }

  function notice(text) {
    var el = $(".mdview-notice");
    if (!el) {
      el = document.createElement("div");
      el.className = "mdview-notice";
      document.body.appendChild(el);
    }
    el.textContent = text;
    setTimeout(function () { el.remove(); }, 6000);
  }

  function applyCycle(msg) {
    var body = $(".markdown-body");
    if (body) body.innerHTML = msg.html;
    var toc = $(".toc");
    if (toc) {
      toc.innerHTML = msg.toc || "";
      toc.hidden = !msg.toc;
    }
    if (msg.css) {
      var style = $('style[data-mdview="page"]');
      if (style) style.textContent = msg.css;
    }
    document.body.dataset.theme = msg.theme;
    document.body.classList.remove("mdview-hidden");
    ensureStylesheet(msg.stylesheet);
    if (msg.diagrams) runDiagrams(msg.script);
  }

  function connect() {
    ws = new WebSocket(url);
    ws.onmessage = function (ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      if (msg.type === "cycle") applyCycle(msg);
      else if (msg.type === "notice") notice(msg.message);
    };
    ws.onclose = function () { setTimeout(connect, 2000); };
  }

  window.mdviewSetTheme = function (theme) {
    if (ws && ws.readyState === WebSocket.OPEN) {
      ws.send(JSON.stringify({ type: "theme", theme: theme }));
    }
  };

  document.addEventListener("click", function (ev) {
    var a = ev.target.closest && ev.target.closest(".toc a[href^='#']");
    if (!a) return;
    var target = document.getElementById(decodeURIComponent(a.getAttribute("href").slice(1)));
    if (!target || target.tagName.toLowerCase() !== (a.dataset.tag || "").toLowerCase()) return;
    ev.preventDefault();
    var nav = $(".navbar");
    var offset = nav ? nav.getBoundingClientRect().bottom : 0;
    window.scrollBy({ top: target.getBoundingClientRect().top - offset, behavior: "smooth" });
  });

  connect();
})();
`
