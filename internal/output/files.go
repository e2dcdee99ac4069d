// Package output owns the two markdown files a sync writes.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"raindrop_sync/internal/apperr"
)

type pending struct {
	final string
	file  *os.File
	buf   *bufio.Writer
}

func create(final string) (*pending, error) {
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(final)+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &pending{final: final, file: f, buf: bufio.NewWriter(f)}, nil
}

func (p *pending) commit() error {
	if err := p.buf.Flush(); err != nil {
		return err
	}
	if err := p.file.Chmod(0o644); err != nil {
		return err
	}
	if err := p.file.Close(); err != nil {
		return err
	}
	return os.Rename(p.file.Name(), p.final)
}

func (p *pending) discard() {
	_ = p.file.Close()
	_ = os.Remove(p.file.Name())
}

// WriteFiles gives fn writers for both files and replaces the targets only
// when fn succeeds. On any failure the previous files are left untouched.
func WriteFiles(taggedPath, untaggedPath string, fn func(tagged, untagged io.Writer) error) (err error) {
	tagged, err := create(taggedPath)
	if err != nil {
		return apperr.New(apperr.KindOutput, "create "+taggedPath, err)
	}
	defer func() {
		if err != nil {
			tagged.discard()
		}
	}()

	untagged, err := create(untaggedPath)
	if err != nil {
		return apperr.New(apperr.KindOutput, "create "+untaggedPath, err)
	}
	defer func() {
		if err != nil {
			untagged.discard()
		}
	}()

	if err = fn(tagged.buf, untagged.buf); err != nil {
		return err
	}

	if err = tagged.commit(); err != nil {
		return apperr.New(apperr.KindOutput, "replace "+taggedPath, err)
	}
	if err = untagged.commit(); err != nil {
		return apperr.New(apperr.KindOutput, "replace "+untaggedPath, errors.Join(err,
			fmt.Errorf("%s was already replaced", taggedPath)))
	}
	return nil
}
