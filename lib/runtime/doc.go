// Package runtime provides the embeddable execution environment for
// TulipScript. A Runtime owns one VM and its globals; hosts drive it through
// the execution modes (RunFile, Interpret, InterpretStatus and the capturing
// variants) and receive a Status plus, for capturing modes, an owned Payload.
//
// The package-level functions operate on a single process-wide runtime
// created by Init and destroyed by Free. The C ABI in cmd/libtulip is built
// on them.
package runtime
