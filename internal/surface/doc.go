// Package surface fits elevation models over a voxel grid.
//
// Two layer types are built per filter iteration, leaves first:
//
//   - DemLayer: per-cell arithmetic mean of Z with a Bessel-corrected
//     root-mean-square error, piecewise constant across the cell.
//   - BiLayer: per-cell bilinear patch whose four corner heights blend the
//     neighbouring DEM cells, continuous across shared corners, with a
//     per-cell RMSE measured against the base points in a second pass.
//
// Undefined metrics (a single-point cell, a corner with no contributors, an
// interpolation touching a missing corner) are represented as NaN rather
// than by error returns; IsNull reports them. Layers are sparse maps keyed
// by cell address and are discarded when their iteration completes.
package surface
