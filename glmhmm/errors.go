package glmhmm

import "fmt"

// ShapeMismatchError indicates that the dimensions of the data and
// parameters passed to a fitting routine do not agree with the model.
type ShapeMismatchError struct {
	Quantity string
	Got      int
	Want     int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("glmhmm: %s has length %d, expected %d", e.Quantity, e.Got, e.Want)
}

// InvalidDistributionError indicates that a parameter generation routine
// was given a distribution it does not recognize.
type InvalidDistributionError struct {
	Name string
}

func (e *InvalidDistributionError) Error() string {
	return fmt.Sprintf("glmhmm: unknown distribution %s", e.Name)
}

// NumericalUnderflowError indicates that a forward-pass normalizer reached
// zero: every state assigned zero probability to the observed choice, so
// the parameters are incompatible with the data.
type NumericalUnderflowError struct {
	Time int
}

func (e *NumericalUnderflowError) Error() string {
	return fmt.Sprintf("glmhmm: forward pass underflow at time %d", e.Time)
}

// SingularHessianError indicates that the Hessian of the log-likelihood is
// not invertible, so no variance estimate exists.  This occurs when the
// likelihood surface is flat or the model is not identifiable, e.g. too few
// observations relative to parameters.
type SingularHessianError struct {
	Dim int
}

func (e *SingularHessianError) Error() string {
	return fmt.Sprintf("glmhmm: %d x %d Hessian is singular", e.Dim, e.Dim)
}

// NonConvergedWarning indicates that Fit reached its iteration limit
// without satisfying the tolerance rule.  It is attached to the fit result
// rather than returned as an error; the trace and parameters are valid.
type NonConvergedWarning struct {
	MaxIter int
	LogLike float64
}

func (e *NonConvergedWarning) Error() string {
	return fmt.Sprintf("glmhmm: EM did not converge in %d iterations (log-likelihood %f)", e.MaxIter, e.LogLike)
}
