package tracker

import "gonum.org/v1/gonum/mat"

// KalmanFilter is a constant-velocity filter over an 8-dimensional state
// [x, y, w, h, vx, vy, vw, vh], used to predict a track's bounding box
// forward when no detection arrives for it this frame. Modeled on
// other_examples/swdee-go-rknnlite__strack.go's Predict/Update calls
// around a gonum/mat-backed covariance, though that file's KalmanFilter
// type itself was not retrieved, so the filter equations here are a
// standard constant-velocity formulation rather than a copy.
type KalmanFilter struct {
	state *mat.VecDense // 8x1
	cov   *mat.Dense    // 8x8
	posStd, velStd float64
}

// NewKalmanFilter creates a filter for an initial normalized bounding box
// (x, y, w, h), with posStd/velStd controlling process noise magnitude.
func NewKalmanFilter(x, y, w, h, posStd, velStd float64) *KalmanFilter {
	state := mat.NewVecDense(8, []float64{x, y, w, h, 0, 0, 0, 0})
	cov := mat.NewDense(8, 8, nil)
	for i := 0; i < 4; i++ {
		cov.Set(i, i, posStd*posStd)
		cov.Set(i+4, i+4, velStd*velStd)
	}
	return &KalmanFilter{state: state, cov: cov, posStd: posStd, velStd: velStd}
}

func transitionMatrix() *mat.Dense {
	f := mat.NewDense(8, 8, nil)
	for i := 0; i < 8; i++ {
		f.Set(i, i, 1)
	}
	for i := 0; i < 4; i++ {
		f.Set(i, i+4, 1) // position += velocity
	}
	return f
}

// Predict advances the filter one frame and returns the predicted
// (x, y, w, h).
func (k *KalmanFilter) Predict() (x, y, w, h float64) {
	f := transitionMatrix()

	var newState mat.VecDense
	newState.MulVec(f, k.state)
	k.state = &newState

	var fp mat.Dense
	fp.Mul(f, k.cov)
	var fpft mat.Dense
	fpft.Mul(&fp, f.T())
	k.cov = &fpft
	for i := 0; i < 8; i++ {
		k.cov.Set(i, i, k.cov.At(i, i)+0.01)
	}

	return k.state.AtVec(0), k.state.AtVec(1), k.state.AtVec(2), k.state.AtVec(3)
}

// Update corrects the filter with an observed (x, y, w, h) via a
// simplified Kalman gain restricted to the position block (measurement
// matrix H = [I4 | 0]).
func (k *KalmanFilter) Update(x, y, w, h float64) {
	measurement := mat.NewVecDense(4, []float64{x, y, w, h})

	var innovation mat.VecDense
	pos := mat.NewVecDense(4, []float64{k.state.AtVec(0), k.state.AtVec(1), k.state.AtVec(2), k.state.AtVec(3)})
	innovation.SubVec(measurement, pos)

	measStd := k.posStd
	if measStd <= 0 {
		measStd = 1
	}
	for i := 0; i < 4; i++ {
		s := k.cov.At(i, i) + measStd*measStd
		if s == 0 {
			continue
		}
		gain := k.cov.At(i, i) / s
		k.state.SetVec(i, k.state.AtVec(i)+gain*innovation.AtVec(i))
		k.cov.Set(i, i, (1-gain)*k.cov.At(i, i))
	}
}

// State returns the current (x, y, w, h) estimate without advancing time.
func (k *KalmanFilter) State() (x, y, w, h float64) {
	return k.state.AtVec(0), k.state.AtVec(1), k.state.AtVec(2), k.state.AtVec(3)
}
