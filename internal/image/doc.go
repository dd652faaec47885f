// Package image provides read-only views over named collections of byte blobs.
//
// A [Resource] lists its entries in a stable order and serves their content either
// whole or as a stream. Three backends exist and are chosen explicitly by [Kind]:
// an exploded directory tree, a zip archive (packaged modules) and the packed
// container file that an installed runtime ships as lib/modules.
//
// No backend ever writes to its source. [WriteContainer] produces new container
// files at build time from any Resource.
package image
