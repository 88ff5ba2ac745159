// Package native binds precompiled upper-atmosphere kernels through the
// platform dynamic loader.
//
// Four variants are registered:
//
//   - msis2: NRLMSIS-2.0 temperature and density, single or double precision
//   - msis00: NRLMSISE-00 temperature and density (gtd7)
//   - hwm14, hwm93: horizontal wind
//
// A Binding loads one copy of a library and resolves one entry point:
//
//	b, err := native.Open(native.MSIS2, native.WithPrecision(kernel.Double))
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//	res, err := b.Evaluate(kernel.Request{Inputs: in})
//
// Loading uses purego on unix and the Win32 loader on windows. No cgo is
// required.
//
// # Thread Safety
//
// The kernels keep global state and are not reentrant. A Binding rejects a
// second concurrent Evaluate with kernel.ErrConcurrentCall instead of
// serializing it. Run independent replicas (WithReplica) to evaluate in
// parallel; each replica loads a private copy of the library file.
package native
