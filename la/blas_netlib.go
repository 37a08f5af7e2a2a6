//go:build netlib

package la

/*
#cgo LDFLAGS: -lopenblas -lgfortran -lm -lpthread
*/
import "C"

import (
	"gonum.org/v1/gonum/blas/blas64"
	netblas "gonum.org/v1/netlib/blas/netlib"
)

// Building with -tags netlib runs the modal solves on OpenBLAS.
func init() {
	blas64.Use(netblas.Implementation{})
	blasBackend = "netlib"
}
