/*Package interval reads regions of interest (ROIs): genomic intervals
  tagged with a gene label.

  ROIs are streamed one at a time, in file order, and are never merged;
  overlapping ROIs are reported as they appear.  It assumes every position
  fits in a PosType, which is currently defined as int32 since that's what
  BAM files are limited to.
*/
package interval
