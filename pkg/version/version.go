package version

// Version is the catalogtree release. Set at build time with:
//
//	go build -ldflags "-X github.com/Tailormap/tailormap-viewer-sub000/pkg/version.Version=v0.2.0"
var Version = "v0.1.0-dev"
