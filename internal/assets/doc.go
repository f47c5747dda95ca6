// Package assets provides page styles, the page shell template, and lazily
// loaded third-party assets (math stylesheet, diagram engine script).
//
// # Loader Architecture
//
// Static assets use a layered loading system:
//
//	AssetLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - loads from go:embed filesystem (built-in styles)
//	    ├── FilesystemLoader  - loads from custom directory on disk
//	    └── AssetResolver     - combines both with custom-first fallback
//
// AssetResolver is the loader used by the CLI. It tries the custom
// FilesystemLoader first, falling back to EmbeddedLoader if the asset is not
// found. This enables overriding a single style or the page shell while
// keeping the other defaults.
//
// # Directory Structure
//
//	{basePath}/
//	├── styles/
//	│   └── {name}.css           # markdown, light, dark, or custom
//	└── templates/
//	    └── {name}.html          # page shell (must contain .markdown-body or a <body>)
//
// # Lazy Assets
//
// LazyLoader injects the math stylesheet and loads the diagram engine into a
// mounted page at most once per loader, caching failures. It is an explicit
// service object: create one per page (or per process) and pass it to the
// renderer.
//
// # Security
//
// Asset names are validated to prevent path traversal attacks.
// FilesystemLoader resolves symlinks and verifies paths stay within basePath.
package assets
