package vocabfile

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/gomlx/go-wordpiece/internal/files"
	"github.com/gomlx/go-wordpiece/tokenizers/vocab"
	"github.com/gomlx/go-wordpiece/tokenizers/wordpiece"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CacheKey returns a content hash of the matchable tokens, used to name the compiled automaton.
func (vf *File) CacheKey() string {
	h := sha256.New()
	var idBuf [binary.MaxVarintLen64]byte
	for _, e := range vf.Entries() {
		n := binary.PutUvarint(idBuf[:], uint64(len(e.Key)))
		h.Write(idBuf[:n])
		h.Write(e.Key)
		n = binary.PutUvarint(idBuf[:], uint64(e.ID))
		h.Write(idBuf[:n])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CachePath returns the path of the compiled automaton of vf under cacheDir.
func (vf *File) CachePath(cacheDir string) string {
	return filepath.Join(cacheDir, vf.CacheKey()+".fst")
}

// CompileCached returns the compiled vocabulary, memory-mapped from "<cacheDir>/<key>.fst".
//
// If the file doesn't exist yet it is compiled and written first. A "<key>.fst.lock" file
// coordinates multiple processes compiling the same vocabulary at the same time.
//
// The returned store should be closed when no longer in use.
func CompileCached(ctx context.Context, vf *File, cacheDir string) (*vocab.Store, error) {
	filePath := vf.CachePath(cacheDir)
	if !files.Exists(filePath) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cacheDir, files.DefaultDirCreationPerm); err != nil {
			return nil, errors.Wrapf(err, "failed to create cache directory %q", cacheDir)
		}

		lockPath := filePath + ".lock"
		var mainErr error
		errLock := files.ExecOnFileLock(ctx, lockPath, func() {
			if files.Exists(filePath) {
				// Compiled concurrently by some other process (or goroutine).
				return
			}
			store, err := vocab.Build(vf.Entries())
			if err != nil {
				mainErr = errors.WithMessagef(err, "while compiling vocabulary for %q", filePath)
				return
			}
			mainErr = files.ReplaceAtomic(filePath, ".compiling", func(f *os.File) error {
				_, err := store.WriteTo(f)
				return err
			})
			if mainErr != nil {
				return
			}
			klog.V(1).Infof("vocabfile: compiled %d keys to %q", store.Len(), filePath)

			// File already exists, so we no longer need the lock file.
			if err := os.Remove(lockPath); err != nil {
				klog.Warningf("vocabfile: error removing lock file %q: %+v", lockPath, err)
			}
		})
		if mainErr != nil {
			return nil, mainErr
		}
		if errLock != nil {
			return nil, errors.WithMessagef(errLock, "while locking %q to compile %q", lockPath, filePath)
		}
	}
	return vocab.Open(filePath)
}

// BuildCached is like Build, but the automaton comes from CompileCached.
func (vf *File) BuildCached(ctx context.Context, cacheDir string) (*wordpiece.Vocabulary, error) {
	config, err := vf.Config()
	if err != nil {
		return nil, err
	}
	store, err := CompileCached(ctx, vf, cacheDir)
	if err != nil {
		return nil, err
	}
	v, err := wordpiece.New(store, config)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return v, nil
}
