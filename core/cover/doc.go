// Package cover turns desktop cover images into the thumbnails sent to the
// device and the digests used to detect cover mismatches.
package cover
