// An installer toolkit for the Helix desktop application on Linux systems.
//
// The toolkit probes the host system, installs the system packages Helix
// depends on (build toolchain, Node.js, Docker, Nix), builds the application
// from its Nix flake, patches the Electron sandbox helper, and writes the
// desktop integration files (launcher, icon, menu entry, dock pin). A
// companion uninstaller reverses the integration steps and can optionally
// purge the system dependencies again.
//
// The toolkit also builds its own distribution format: a single
// self-extracting file consisting of a shell stub, a sentinel line and a
// base64-encoded tar.gz payload. See archive.go for the container format.
//
// See the README.md for usage info and customization instructions.
package installer
