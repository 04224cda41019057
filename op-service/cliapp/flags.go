package cliapp

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// CloneableGeneric is a cli.Generic value that can be copied, so flag defaults are not shared
// between apps.
type CloneableGeneric interface {
	cli.Generic
	Clone() any
}

// ProtectFlags returns copies of the flags, with cloned generic values.
// It panics on flag types it cannot copy.
func ProtectFlags(flags []cli.Flag) []cli.Flag {
	out := make([]cli.Flag, 0, len(flags))
	for _, f := range flags {
		fCopy, err := cloneFlag(f)
		if err != nil {
			panic(fmt.Errorf("failed to clone flag %q: %w", f.Names()[0], err))
		}
		out = append(out, fCopy)
	}
	return out
}

func cloneFlag(f cli.Flag) (cli.Flag, error) {
	switch typedFlag := f.(type) {
	case *cli.GenericFlag:
		cpy := *typedFlag
		if genValue, ok := typedFlag.Value.(CloneableGeneric); ok {
			cpy.Value = genValue.Clone().(cli.Generic)
		} else {
			return nil, fmt.Errorf("cannot clone generic value %T", typedFlag.Value)
		}
		return &cpy, nil
	case *cli.StringFlag:
		cpy := *typedFlag
		return &cpy, nil
	case *cli.BoolFlag:
		cpy := *typedFlag
		return &cpy, nil
	case *cli.IntFlag:
		cpy := *typedFlag
		return &cpy, nil
	case *cli.Uint64Flag:
		cpy := *typedFlag
		return &cpy, nil
	case *cli.Uint64SliceFlag:
		cpy := *typedFlag
		return &cpy, nil
	case *cli.StringSliceFlag:
		cpy := *typedFlag
		return &cpy, nil
	case *cli.DurationFlag:
		cpy := *typedFlag
		return &cpy, nil
	case *cli.PathFlag:
		cpy := *typedFlag
		return &cpy, nil
	case *cli.Float64Flag:
		cpy := *typedFlag
		return &cpy, nil
	default:
		return nil, fmt.Errorf("unsupported flag type %T", f)
	}
}
