// Package pixel owns the domain types for pixel cluster reconstruction.
//
// Responsibilities: digi and cluster records, detector-unit identifiers,
// per-unit geometry descriptors, per-unit noise and bad-channel inputs, and
// the shared logging streams used by the pixel packages.
//
// Layering: detset, geometry, calib and clusterizer depend on pixel;
// producer composes them; pipeline is the composition root and imports
// everything below it. Nothing in internal/pixel imports pipeline.
package pixel
