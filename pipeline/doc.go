// Package pipeline runs resting-state HRF retrieval and deconvolution over a
// BOLD matrix.
//
// Each column of the input is one voxel time series. [Run] z-scores and
// band-pass filters the columns, estimates every voxel's HRF in parallel,
// resamples the curves to scan resolution and deconvolves each voxel with
// its own response:
//
//	params := hrf.DefaultParams()
//	params.TR = 2
//
//	res, err := pipeline.Run(ctx, bold, params, pipeline.DefaultOptions())
//	if err != nil {
//		return err
//	}
//
//	fmt.Println(res.HRF.Dims(), res.Failed())
//
// A voxel that fails keeps zero columns in every output and its error in
// [Result.VoxelErrors]; the run only fails when no voxel succeeds.
package pipeline
