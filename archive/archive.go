// Package archive keeps the results of earlier study runs on disk, so a run can
// be compared with the runs before it on the same corpus. Results are grouped
// by corpus fingerprint, one append-only file per fingerprint. New results are
// buffered and written when the archive is closed.
//
// It only works on Unix.
package archive

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniterator "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/sys/unix"

	"spamstudy/study"
)

var (
	ErrReadonly           = errors.New("readonly archive")
	ErrClosed             = errors.New("closed archive")
	ErrInvalidFingerprint = errors.New("invalid corpus fingerprint")
)

type Archive struct {
	path string

	writeable bool
	closed    bool

	lockFH *os.File // nil for a read only archive that does not exist yet

	sg singleflight.Group

	mu      sync.Mutex
	stored  map[string][]study.Result // results read from disk, by fingerprint
	pending map[string][]study.Result // results added since opening, persisted upon close
}

// Open opens (and creates, if necessary) an archive. If writeable is false, the
// archive is opened in shared, read only mode and a missing archive reads as
// empty. Otherwise, it is locked for exclusive access and results can be added.
func Open(path string, writeable bool) (a *Archive, err error) {
	fullPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "determining absolute path of %s", path)
	}

	a = &Archive{
		path:      fullPath,
		writeable: writeable,

		stored:  make(map[string][]study.Result),
		pending: make(map[string][]study.Result),
	}

	flag, how := os.O_RDONLY, unix.LOCK_SH
	if writeable {
		err = os.MkdirAll(fullPath, 0750)
		if err != nil {
			return nil, errors.Wrap(err, "creating archive path")
		}

		flag, how = os.O_RDWR|os.O_CREATE, unix.LOCK_EX
	}

	fh, err := os.OpenFile(filepath.Join(fullPath, "lock"), flag, 0600)
	if err != nil {
		// Nothing was ever written, so there is nothing to guard
		if !writeable && errors.Is(err, os.ErrNotExist) {
			return a, nil
		}

		return nil, errors.Wrap(err, "opening lock file")
	}
	defer func() {
		if err != nil {
			fh.Close()
		}
	}()

	err = unix.Flock(int(fh.Fd()), how)
	if err != nil {
		return nil, errors.Wrap(err, "locking archive")
	}

	a.lockFH = fh

	return a, nil
}

func (a *Archive) file(fingerprint string) (string, error) {
	if fingerprint == "" || strings.ContainsAny(fingerprint, `/\.`) {
		return "", errors.Wrapf(ErrInvalidFingerprint, "%q", fingerprint)
	}

	return filepath.Join(a.path, "runs-"+fingerprint+".json"), nil
}

// Close persists the added results and closes the archive.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	defer func() {
		if a.lockFH != nil {
			a.lockFH.Close()
		}

		a.closed = true
	}()

	var eg errgroup.Group

	for fingerprint, results := range a.pending {
		eg.Go(func() error {
			p, err := a.file(fingerprint)
			if err != nil {
				return err
			}

			fh, err := os.OpenFile(p, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0600)
			if err != nil {
				return errors.Wrapf(err, "opening run file for %s", fingerprint)
			}
			defer fh.Close()

			enc := jsoniterator.NewEncoder(fh)
			for _, res := range results {
				err = enc.Encode(res)
				if err != nil {
					return errors.Wrapf(err, "encoding run %s", res.RunID)
				}
			}

			return nil
		})
	}

	return eg.Wait()
}

// load reads the stored results of fingerprint. It is entered and left with
// a.mu held.
func (a *Archive) load(fingerprint string) error {
	if _, ok := a.stored[fingerprint]; ok {
		return nil
	}

	p, err := a.file(fingerprint)
	if err != nil {
		return err
	}

	// we enter here locked, so unlock while doing work
	a.mu.Unlock()

	val, err, _ := a.sg.Do(p, func() (interface{}, error) {
		fh, err := os.Open(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return []study.Result{}, nil
			}

			return nil, err
		}
		defer fh.Close()

		dec := jsoniterator.NewDecoder(fh)

		var res []study.Result
		for dec.More() {
			var r study.Result

			err = dec.Decode(&r)
			if err != nil {
				return nil, errors.Wrapf(err, "decoding run %d", len(res)+1)
			}

			res = append(res, r)
		}

		return res, nil
	})

	// Restore lock state
	a.mu.Lock()

	if err != nil {
		return errors.Wrapf(err, "loading runs for %s", fingerprint)
	}

	a.stored[fingerprint] = val.([]study.Result)

	return nil
}

// Add records res under its corpus fingerprint.
func (a *Archive) Add(res study.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	if !a.writeable {
		return ErrReadonly
	}

	fingerprint := res.Summary.Fingerprint

	_, err := a.file(fingerprint)
	if err != nil {
		return err
	}

	a.pending[fingerprint] = append(a.pending[fingerprint], res)

	return nil
}

// Runs returns the stored and added results for a corpus fingerprint, oldest
// first.
func (a *Archive) Runs(fingerprint string) ([]study.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}

	err := a.load(fingerprint)
	if err != nil {
		return nil, err
	}

	stored := a.stored[fingerprint]
	pending := a.pending[fingerprint]

	res := make([]study.Result, 0, len(stored)+len(pending))
	res = append(res, stored...)
	res = append(res, pending...)

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Started.Before(res[j].Started)
	})

	return res, nil
}
