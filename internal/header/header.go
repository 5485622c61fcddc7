// Package header validates the metadata comment that opens every
// submitted file:
//
//	/*
//	 * Autor: Erika Mustermann
//	 * Matr.-Nr.: 912345
//	 * Erstellt: 15.03.2021
//	 */
package header

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cutekitek/rankode-grader/pkg/files"
	"github.com/pkg/errors"
)

const (
	AuthorLabel    = "Autor:"
	StudentIDLabel = "Matr.-Nr.:"
	DateLabel      = "Erstellt:"

	DateLayout = "02.01.2006"

	openMarker  = "/*"
	closeMarker = "*/"

	minStudentID = 800000
	maxStudentID = 1000000
)

// Block is the leading comment of a file, markers included.
type Block struct {
	Lines  []string
	Closed bool
}

type Metadata struct {
	Author    string
	StudentID int
	Date      time.Time

	HasAuthor    bool
	HasStudentID bool
	HasDate      bool
}

// Valid reports whether all three fields were found and passed their checks.
func (m Metadata) Valid() bool {
	return m.HasAuthor && m.HasStudentID && m.HasDate
}

// ReadBlock collects lines from the first one containing the opening marker
// up to and including the first one containing the closing marker.
func ReadBlock(r io.Reader) (*Block, error) {
	block := &Block{}
	started := false
	err := files.EachLine(r, func(line string) bool {
		if strings.Contains(line, openMarker) {
			started = true
		}
		if started {
			block.Lines = append(block.Lines, line)
		}
		if started && strings.Contains(line, closeMarker) {
			block.Closed = true
			return false
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	return block, nil
}

// Metadata extracts the labeled fields. Any value that fails to parse
// aborts extraction with an error.
func (b *Block) Metadata() (Metadata, error) {
	var m Metadata
	for _, line := range b.Lines {
		if v, ok := valueAfter(line, AuthorLabel); ok {
			m.Author = v
			m.HasAuthor = true
		}
		if v, ok := valueAfter(line, StudentIDLabel); ok {
			id, err := strconv.Atoi(v)
			if err != nil {
				return m, errors.Wrapf(err, "invalid student id %q", v)
			}
			m.StudentID = id
			m.HasStudentID = minStudentID < id && id < maxStudentID
		}
		if v, ok := valueAfter(line, DateLabel); ok {
			date, err := time.Parse(DateLayout, v)
			if err != nil {
				return m, errors.Wrapf(err, "invalid date %q", v)
			}
			m.Date = date
			m.HasDate = true
		}
	}
	return m, nil
}

func valueAfter(line, label string) (string, bool) {
	idx := strings.LastIndex(line, label)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(line[idx+len(label):]), true
}

// Validate reports whether r starts with a complete and well-formed header.
func Validate(r io.Reader) (bool, error) {
	block, err := ReadBlock(r)
	if err != nil {
		return false, err
	}
	if !block.Closed || len(block.Lines) < 2 {
		slog.Debug("header block incomplete", "lines", len(block.Lines), "closed", block.Closed)
		return false, nil
	}
	meta, err := block.Metadata()
	if err != nil {
		slog.Debug("header field rejected", "error", err)
		return false, nil
	}
	slog.Debug("header fields", "author", meta.Author, "studentId", meta.StudentID, "date", meta.Date, "valid", meta.Valid())
	return meta.Valid(), nil
}

// Check validates the header of the file at path. Only an unreadable file
// produces an error.
func Check(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()
	return Validate(file)
}
