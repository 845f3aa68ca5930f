// Package garden holds the plant-catalog domain: the Plant model, grow
// zones, the remotely-defined display order, and the ports to the persistent
// store and the remote plant service.
//
// The interesting machinery lives in the subpackages: gardencache (the
// single-flight order cache), gardenview (the derived sorted views),
// gardensrv (the repository facade), gardeninfra and gardenremote (the
// store and remote adapters) and gardenapi (the HTTP surface).
package garden
