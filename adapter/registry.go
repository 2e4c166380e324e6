package adapter

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/arloliu/go-thales/script"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/cast"
)

// Func is an operation callable by name. Arguments and results are plain values: numbers,
// strings, booleans and slices or maps of them.
type Func func(args ...any) (any, error)

// ErrUnknownOperation is returned by Call for names that were never registered.
var ErrUnknownOperation = errors.New("unknown operation")

// Registry maps operation names to functions.
type Registry struct {
	funcs *xsync.MapOf[string, Func]
}

func NewRegistry() *Registry {
	return &Registry{funcs: xsync.NewMapOf[string, Func]()}
}

// Register adds fn under name, replacing an earlier registration.
func (r *Registry) Register(name string, fn Func) {
	r.funcs.Store(name, fn)
}

// Call runs the operation registered under name.
func (r *Registry) Call(name string, args ...any) (any, error) {
	fn, ok := r.funcs.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	return fn(args...)
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.funcs.Size())
	r.funcs.Range(func(name string, _ Func) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)

	return names
}

// RegisterWrapper registers the common operations of w.
func (r *Registry) RegisterWrapper(w *script.Wrapper) {
	r.Register("ExecuteRemoteCommand", stringArg(w.ExecuteRemoteCommand))
	r.Register("SetValue", func(args ...any) (any, error) {
		if err := argCount(args, 2); err != nil {
			return nil, err
		}
		name, err := toString(args[0])
		if err != nil {
			return nil, err
		}
		return w.SetValue(name, args[1])
	})

	r.Register("GetCurrent", noArgFloat(w.GetCurrent))
	r.Register("GetPotential", noArgFloat(w.GetPotential))
	r.Register("GetSerialNumber", noArgString(w.GetSerialNumber))
	r.Register("GetDeviceName", noArgString(w.GetDeviceName))
	r.Register("GetSerialNumberFromTerm", noArgString(w.GetSerialNumberFromTerm))
	r.Register("ForceThalesIntoRemoteScript", noArgString(w.ForceThalesIntoRemoteScript))
	r.Register("HideWindow", noArgString(w.HideWindow))
	r.Register("ShowWindow", noArgString(w.ShowWindow))
	r.Register("CalibrateOffsets", noArgString(w.CalibrateOffsets))
	r.Register("ReadSetup", noArgString(w.ReadSetup))
	r.Register("DisablePotentiostat", noArgString(w.DisablePotentiostat))
	r.Register("MeasureEIS", noArgString(w.MeasureEIS))
	r.Register("MeasureCV", noArgString(w.MeasureCV))
	r.Register("MeasureIE", noArgString(w.MeasureIE))
	r.Register("RunSequence", noArgString(w.RunSequence))

	r.Register("SetPotential", floatArg(w.SetPotential))
	r.Register("SetCurrent", floatArg(w.SetCurrent))
	r.Register("SetFrequency", floatArg(w.SetFrequency))
	r.Register("SetAmplitude", floatArg(w.SetAmplitude))
	r.Register("SetUpperFrequencyLimit", floatArg(w.SetUpperFrequencyLimit))
	r.Register("SetLowerFrequencyLimit", floatArg(w.SetLowerFrequencyLimit))
	r.Register("SetStartFrequency", floatArg(w.SetStartFrequency))

	r.Register("SetNumberOfPeriods", intArg(w.SetNumberOfPeriods))
	r.Register("SelectPotentiostat", intArg(w.SelectPotentiostat))
	r.Register("SelectSequence", intArg(w.SelectSequence))
	r.Register("SetUpperStepsPerDecade", intArg(w.SetUpperStepsPerDecade))
	r.Register("SetLowerStepsPerDecade", intArg(w.SetLowerStepsPerDecade))
	r.Register("SetUpperNumberOfPeriods", intArg(w.SetUpperNumberOfPeriods))
	r.Register("SetLowerNumberOfPeriods", intArg(w.SetLowerNumberOfPeriods))
	r.Register("SetEISCounter", intArg(w.SetEISCounter))

	r.Register("SetEISOutputPath", stringArg(w.SetEISOutputPath))
	r.Register("SetEISOutputFileName", stringArg(w.SetEISOutputFileName))

	r.Register("EnablePotentiostat", func(args ...any) (any, error) {
		enabled := true
		if len(args) > 0 {
			b, err := toBool(args[0])
			if err != nil {
				return nil, err
			}
			enabled = b
		}
		return w.EnablePotentiostat(enabled)
	})
	r.Register("SetPotentiostatMode", func(args ...any) (any, error) {
		mode, err := oneInt(args)
		if err != nil {
			return nil, err
		}
		return w.SetPotentiostatMode(script.PotentiostatMode(mode))
	})
	r.Register("SetEISNaming", func(args ...any) (any, error) {
		if err := argCount(args, 1); err != nil {
			return nil, err
		}
		naming, err := toFileNaming(args[0])
		if err != nil {
			return nil, err
		}
		return w.SetEISNaming(naming)
	})
	r.Register("GetImpedance", func(args ...any) (any, error) {
		var opts []script.ImpedanceOption
		if len(args) > 0 {
			f, err := toFloat(args[0])
			if err != nil {
				return nil, err
			}
			opts = append(opts, script.AtFrequency(f))
		}
		if len(args) > 1 {
			a, err := toFloat(args[1])
			if err != nil {
				return nil, err
			}
			opts = append(opts, script.WithAmplitude(a))
		}
		if len(args) > 2 {
			n, err := toInt(args[2])
			if err != nil {
				return nil, err
			}
			opts = append(opts, script.WithPeriods(n))
		}
		return w.GetImpedance(opts...)
	})
	r.Register("ReadAllAcqChannels", func(...any) (any, error) {
		return w.ReadAllAcqChannels()
	})
	r.Register("ReadAcqChannel", func(args ...any) (any, error) {
		ch, err := oneInt(args)
		if err != nil {
			return nil, err
		}
		return w.ReadAcqChannel(ch)
	})
}

func noArgString(fn func() (string, error)) Func {
	return func(...any) (any, error) { return fn() }
}

func noArgFloat(fn func() (float64, error)) Func {
	return func(...any) (any, error) { return fn() }
}

func floatArg(fn func(float64) (string, error)) Func {
	return func(args ...any) (any, error) {
		if err := argCount(args, 1); err != nil {
			return nil, err
		}
		v, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		return fn(v)
	}
}

func intArg(fn func(int) (string, error)) Func {
	return func(args ...any) (any, error) {
		v, err := oneInt(args)
		if err != nil {
			return nil, err
		}
		return fn(v)
	}
}

func stringArg(fn func(string) (string, error)) Func {
	return func(args ...any) (any, error) {
		if err := argCount(args, 1); err != nil {
			return nil, err
		}
		v, err := toString(args[0])
		if err != nil {
			return nil, err
		}
		return fn(v)
	}
}

func oneInt(args []any) (int, error) {
	if err := argCount(args, 1); err != nil {
		return 0, err
	}

	return toInt(args[0])
}

func argCount(args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: want %d arguments, got %d", script.ErrInvalidArgument, n, len(args))
	}
	return nil
}

// missing rejects nil, which cast would silently turn into a zero value.
func missing(v any, kind string) error {
	if v == nil {
		return fmt.Errorf("%w: missing %s", script.ErrInvalidArgument, kind)
	}
	return nil
}

func toFloat(v any) (float64, error) {
	if err := missing(v, "number"); err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", script.ErrInvalidArgument, err)
	}

	return f, nil
}

// toInt rejects floats with a fraction, cast would truncate them.
func toInt(v any) (int, error) {
	if err := missing(v, "integer"); err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%w: %v is not an integer", script.ErrInvalidArgument, x)
		}
	case float32:
		if float64(x) != math.Trunc(float64(x)) {
			return 0, fmt.Errorf("%w: %v is not an integer", script.ErrInvalidArgument, x)
		}
	}

	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", script.ErrInvalidArgument, err)
	}

	return n, nil
}

func toString(v any) (string, error) {
	if err := missing(v, "string"); err != nil {
		return "", err
	}
	str, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", script.ErrInvalidArgument, err)
	}

	return str, nil
}

func toBool(v any) (bool, error) {
	if err := missing(v, "boolean"); err != nil {
		return false, err
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("%w: %w", script.ErrInvalidArgument, err)
	}

	return b, nil
}

// toFileNaming accepts a FileNaming, its number or its name.
func toFileNaming(v any) (script.FileNaming, error) {
	switch x := v.(type) {
	case script.FileNaming:
		return x, nil
	case string:
		if n, err := script.ParseFileNaming(x); err == nil {
			return n, nil
		}
	}

	n, err := toInt(v)
	if err != nil {
		return 0, err
	}

	return script.FileNaming(n), nil
}
