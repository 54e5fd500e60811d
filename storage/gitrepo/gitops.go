package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// gitStore wraps go-git with the handful of operations the repository
// needs. It is not safe for concurrent use: the owning repository serializes
// every call behind its mutex, because concurrent operations on one working
// tree corrupt its index.
type gitStore struct {
	path        string
	authorName  string
	authorEmail string
	remoteURL   string

	repo *git.Repository
}

// open opens the repository at the configured path, creating and
// initializing it when absent, and drops any uncommitted state left behind
// by a previous aggressively-killed process.
func (s *gitStore) open() error {
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("cannot create working tree directory %s: %w", s.path, err)
	}

	repo, err := git.PlainOpen(s.path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(s.path, false)
	}
	if err != nil {
		return fmt.Errorf("cannot open git repository %s: %w", s.path, err)
	}
	s.repo = repo

	if s.remoteURL != "" {
		if _, err := repo.Remote(git.DefaultRemoteName); errors.Is(err, git.ErrRemoteNotFound) {
			if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
				Name: git.DefaultRemoteName,
				URLs: []string{s.remoteURL},
			}); err != nil {
				return fmt.Errorf("cannot configure remote %s: %w", s.remoteURL, err)
			}
		}
	}

	return s.cleanUp()
}

// cleanUp discards uncommitted changes and removes untracked leftovers.
func (s *gitStore) cleanUp() error {
	worktree, err := s.repo.Worktree()
	if err != nil {
		return err
	}

	head, err := s.repo.Head()
	if err == nil {
		if err := worktree.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset}); err != nil {
			return fmt.Errorf("cannot reset working tree %s: %w", s.path, err)
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return err
	}

	return worktree.Clean(&git.CleanOptions{Dir: true})
}

// commitFile stages one file and commits it with the given message, dating
// both author and committer with the record's fetch date so that history
// order reflects content chronology.
func (s *gitStore) commitFile(relPath, message string, date time.Time) (string, error) {
	worktree, err := s.repo.Worktree()
	if err != nil {
		return "", err
	}

	if _, err := worktree.Add(relPath); err != nil {
		return "", fmt.Errorf("cannot stage %s: %w", relPath, err)
	}

	signature := &object.Signature{
		Name:  s.authorName,
		Email: s.authorEmail,
		When:  date,
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author:    signature,
		Committer: signature,
	})
	if err != nil {
		return "", fmt.Errorf("could not commit %s with message %q: %w", relPath, message, err)
	}

	return hash.String(), nil
}

// commitByID resolves an ID (full or abbreviated hash) to the commit it
// names. Unknown revisions yield (nil, nil).
func (s *gitStore) commitByID(id string) (*commitInfo, error) {
	hash, err := s.repo.ResolveRevision(plumbing.Revision(id))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, nil
		}
		// go-git reports unknown abbreviated revisions with an ad-hoc error,
		// which callers must read as absence, not failure.
		if strings.Contains(err.Error(), "reference not found") || strings.Contains(err.Error(), "no commit found") {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot resolve revision %q: %w", id, err)
	}

	commit, err := s.repo.CommitObject(*hash)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, err
	}

	info, err := newCommitInfo(commit)
	if err != nil {
		return nil, err
	}

	return &info, nil
}

// listRecordCommits returns every record commit reachable from HEAD, sorted
// ascending by author date. Incidental commits (README, licensing) are
// filtered out by the subject prefix vocabulary; merge commits are skipped.
// The log order itself is no chronology: commit dates are set to fetch
// dates, and corrective saves land out of order.
func (s *gitStore) listRecordCommits(ctx context.Context) ([]commitInfo, error) {
	head, err := s.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil // No commits yet
		}
		return nil, err
	}

	logIter, err := s.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, err
	}
	defer logIter.Close()

	var infos []commitInfo
	err = logIter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if commit.NumParents() > 1 {
			return nil
		}

		subject, _, _ := strings.Cut(commit.Message, "\n")
		if !subjectMatchesRecord(subject) {
			return nil
		}

		info, err := newCommitInfo(commit)
		if err != nil {
			return err
		}

		// Subject vocabulary alone is not enough: a "Update README" commit
		// matches a deprecated prefix. Records always live in a service
		// directory, never at the root.
		if len(info.files) == 0 || path.Dir(info.files[0]) == "." {
			return nil
		}

		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The log iterator walked newest first; reverse before the date sort so
	// that equal fetch dates keep their commit order.
	for i, j := 0, len(infos)-1; i < j; i, j = i+1, j-1 {
		infos[i], infos[j] = infos[j], infos[i]
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].date.Before(infos[j].date)
	})

	return infos, nil
}

func newCommitInfo(commit *object.Commit) (commitInfo, error) {
	subject, rest, _ := strings.Cut(commit.Message, "\n")

	stats, err := commit.Stats()
	if err != nil {
		return commitInfo{}, fmt.Errorf("cannot compute changed files of %s: %w", commit.Hash, err)
	}

	files := make([]string, 0, len(stats))
	for _, stat := range stats {
		files = append(files, stat.Name)
	}

	return commitInfo{
		hash:    commit.Hash.String(),
		subject: subject,
		body:    strings.TrimSpace(rest),
		date:    commit.Author.When,
		files:   files,
	}, nil
}

// fileAtCommit reads the raw bytes of a file as stored in the given commit,
// straight from the object store. Binary payloads round-trip untouched.
func (s *gitStore) fileAtCommit(hash, relPath string) ([]byte, error) {
	commit, err := s.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("cannot read commit %s: %w", hash, err)
	}

	file, err := commit.File(relPath)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, object.ErrFileNotFound
		}
		return nil, fmt.Errorf("cannot read %s at %s: %w", relPath, hash, err)
	}

	reader, err := file.Blob.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// filesAtHead lists the repository-relative paths tracked at HEAD. An empty
// history lists nothing.
func (s *gitStore) filesAtHead() ([]string, error) {
	head, err := s.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, err
	}

	commit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	var paths []string
	err = tree.Files().ForEach(func(file *object.File) error {
		paths = append(paths, file.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return paths, nil
}

// push propagates local commits to the configured remote. This is the only
// point where records leave process-local storage.
func (s *gitStore) push(ctx context.Context) error {
	err := s.repo.PushContext(ctx, &git.PushOptions{RemoteName: git.DefaultRemoteName})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot push %s: %w", s.path, err)
	}
	return nil
}

// destroy removes the whole store, history included, and re-initializes an
// empty one.
func (s *gitStore) destroy() error {
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("cannot remove %s: %w", s.path, err)
	}
	return s.open()
}
