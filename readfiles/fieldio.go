package readfiles

import (
	"bufio"
	"context"
	"fmt"

	"github.com/notargets/dfem/field"
	"github.com/notargets/dfem/mesh"
	"github.com/notargets/dfem/parallel"
	"github.com/notargets/dfem/utils"
)

// WriteFieldValues writes a header with the variable count and then one
// value per line. With global set the values are gathered to the root,
// which writes them in global order. Otherwise every rank writes its local
// values, to a file suffixed with its rank when there is more than one.
func WriteFieldValues(ctx context.Context, comm *parallel.Comm, path string, f *field.Field, global bool) error {
	var values []float64
	if global {
		var err error
		if values, err = field.AssembleGlobalValues(ctx, comm, f); err != nil {
			return err
		}
		if !comm.IsRoot() {
			return nil
		}
	} else {
		values = f.Values()
		if comm.Size() > 1 {
			path = fmt.Sprintf("%s%d", path, comm.Rank())
		}
	}
	return createFile(path, func(w *bufio.Writer) error {
		fmt.Fprintf(w, "%d\n", f.NumVars())
		for _, v := range values {
			fmt.Fprintln(w, formatFloat(v))
		}
		return nil
	})
}

// ReadFieldValues loads a globally ordered field file, keeping the values
// of the nodes present on this rank.
func ReadFieldValues(path string, f *field.Field) error {
	tr, closer, err := openTokens(path)
	if err != nil {
		return err
	}
	defer closer.Close()
	nVars, err := tr.nextInt()
	if err != nil {
		return err
	}
	if nVars != f.NumVars() {
		return utils.InvalidSizeError(f.NumVars(), nVars)
	}
	m := f.Mesh()
	values := make([]float64, f.NumDof())
	vals := make([]float64, nVars)
	for g := 0; g < m.NumNodesGlobal(); g++ {
		for j := range vals {
			if vals[j], err = tr.nextFloat(); err != nil {
				return err
			}
		}
		if local, ok := m.Index().ToLocal(mesh.Global, g); ok {
			copy(values[local*nVars:(local+1)*nVars], vals)
		}
	}
	return f.SetValues(values)
}
