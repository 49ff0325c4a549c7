// Package returns computes multi-step bootstrapped return estimates
// used to train a value function.
package returns

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Lambda computes lambda-weighted bootstrapped returns over batched
// sequences. reward, value, and discount must have identical shapes,
// with time along rows when axis == 0 and along columns when axis == 1.
// bootstrap is the terminal value estimate, one entry per batch
// element; a nil bootstrap is treated as zero.
//
// Setting lambda = 1 gives a discounted Monte Carlo return. Setting
// lambda = 0 gives a fixed 1-step return. The computation is a strict
// right-to-left fold,
//
//	R[t] = target[t] + discount[t]*lambda*R[t+1]
//	target[t] = reward[t] + discount[t]*nextValue[t]*(1-lambda)
//
// seeded with the bootstrap; each term depends on the next term's
// already-blended value, so no closed form applies.
func Lambda(reward, value, discount *mat.Dense, bootstrap mat.Vector,
	lambda float64, axis int) (*mat.Dense, error) {
	if axis != 0 && axis != 1 {
		return nil, fmt.Errorf("lambda: time axis must be 0 or 1, got %d",
			axis)
	}
	if axis == 1 {
		reward = mat.DenseCopyOf(reward.T())
		value = mat.DenseCopyOf(value.T())
		discount = mat.DenseCopyOf(discount.T())
	}

	steps, batch := reward.Dims()
	if r, c := value.Dims(); r != steps || c != batch {
		return nil, fmt.Errorf("lambda: value shape (%d, %d) does not match "+
			"reward shape (%d, %d)", r, c, steps, batch)
	}
	if r, c := discount.Dims(); r != steps || c != batch {
		return nil, fmt.Errorf("lambda: discount shape (%d, %d) does not "+
			"match reward shape (%d, %d)", r, c, steps, batch)
	}
	if bootstrap != nil && bootstrap.Len() != batch {
		return nil, fmt.Errorf("lambda: bootstrap length %d does not match "+
			"batch size %d", bootstrap.Len(), batch)
	}
	if bootstrap == nil {
		bootstrap = mat.NewVecDense(batch, nil)
	}

	out := mat.NewDense(steps, batch, nil)
	last := mat.VecDenseCopyOf(bootstrap)
	nextValue := mat.NewVecDense(batch, nil)
	target := mat.NewVecDense(batch, nil)
	blend := mat.NewVecDense(batch, nil)

	for t := steps - 1; t >= 0; t-- {
		if t == steps-1 {
			nextValue.CopyVec(bootstrap)
		} else {
			nextValue.CopyVec(value.RowView(t + 1))
		}

		// target[t] = reward[t] + discount[t] .* nextValue * (1-lambda)
		target.MulElemVec(discount.RowView(t), nextValue)
		target.AddScaledVec(reward.RowView(t), 1-lambda, target)

		// R[t] = target[t] + lambda * discount[t] .* R[t+1]
		blend.MulElemVec(discount.RowView(t), last)
		last.AddScaledVec(target, lambda, blend)

		out.SetRow(t, rowData(last))
	}

	if axis == 1 {
		return mat.DenseCopyOf(out.T()), nil
	}
	return out, nil
}

// LambdaVec computes lambda returns for a single unbatched sequence.
func LambdaVec(reward, value, discount []float64, bootstrap,
	lambda float64) ([]float64, error) {
	if len(value) != len(reward) || len(discount) != len(reward) {
		return nil, fmt.Errorf("lambdaVec: length mismatch: reward %d, "+
			"value %d, discount %d", len(reward), len(value), len(discount))
	}
	if len(reward) == 0 {
		return nil, fmt.Errorf("lambdaVec: empty sequence")
	}

	out, err := Lambda(
		mat.NewDense(len(reward), 1, append([]float64{}, reward...)),
		mat.NewDense(len(value), 1, append([]float64{}, value...)),
		mat.NewDense(len(discount), 1, append([]float64{}, discount...)),
		mat.NewVecDense(1, []float64{bootstrap}),
		lambda, 0,
	)
	if err != nil {
		return nil, err
	}

	returns := make([]float64, len(reward))
	mat.Col(returns, 0, out)
	return returns, nil
}

// rowData copies a vector into a fresh []float64 for SetRow.
func rowData(v *mat.VecDense) []float64 {
	data := make([]float64, v.Len())
	for i := range data {
		data[i] = v.AtVec(i)
	}
	return data
}
