package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"io"

	apperrors "schoolgenius-seeder/pkg/errors"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagSet(name string, w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	return fs
}

// parseFlags 解析参数；-h 视为正常退出，handled 为 true 时调用方直接返回
func parseFlags(fs *flag.FlagSet, args []string) (handled bool, err error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return true, apperrors.Wrap(err, apperrors.CodeInvalidConfig, "invalid arguments")
	}
	if fs.NArg() > 0 {
		return true, apperrors.Newf(apperrors.CodeInvalidConfig, "unexpected argument %q", fs.Arg(0))
	}
	return false, nil
}
