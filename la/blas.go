package la

// blasBackend names the BLAS under the dense Cholesky and eigen work of
// SolveEigen.
var blasBackend = "gonum"
