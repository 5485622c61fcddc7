package behavior

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cutekitek/rankode-grader/internal/grading"
	"github.com/cutekitek/rankode-grader/pkg/files"
	"github.com/pkg/errors"
)

const (
	ArgsFile = "args.txt"

	DateLayout = "02.01.2006"

	argMarker    = "#"
	nameSep      = "."
	idFragmentLn = 8
	argsCount    = 4
)

// Expected holds the values a program must print for a given args file.
type Expected struct {
	Name string
	Date time.Time
	Rate float64
}

// ParseArgs reads the four marker prefixed lines of an args file:
// name fragment, identifier fragment, date and rate.
func ParseArgs(r io.Reader) (*Expected, error) {
	var fields []string
	err := files.EachLine(r, func(line string) bool {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, argMarker) {
			fields = append(fields, strings.TrimSpace(strings.TrimPrefix(line, argMarker)))
		}
		return len(fields) < argsCount
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read args")
	}
	if len(fields) < argsCount {
		return nil, errors.Errorf("expected %d arguments, found %d", argsCount, len(fields))
	}
	if fields[0] == "" {
		return nil, errors.New("name fragment is empty")
	}

	first, _ := utf8.DecodeRuneInString(fields[0])
	id := []rune(fields[1])
	if len(id) > idFragmentLn {
		id = id[:idFragmentLn]
	}
	date, err := time.Parse(DateLayout, fields[2])
	if err != nil {
		return nil, errors.Wrapf(err, "invalid date %q", fields[2])
	}
	rate, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid rate %q", fields[3])
	}
	return &Expected{
		Name: string(unicode.ToUpper(first)) + nameSep + string(id),
		Date: date,
		Rate: rate,
	}, nil
}

func ReadArgs(path string) (*Expected, []byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, grading.New(grading.KindMissingFile, stage, "argument file for execution is not provided")
		}
		return nil, nil, grading.Wrap(err, grading.KindMissingFile, stage, "argument file for execution could not be read")
	}
	expected, err := ParseArgs(bytes.NewReader(content))
	if err != nil {
		return nil, nil, grading.Wrap(err, grading.KindMissingFile, stage, "argument file for execution is malformed")
	}
	return expected, content, nil
}
