package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/archive"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

// StdoutFile is the archive member holding the standard output of a work.
const StdoutFile = "stdout.txt"

// Extractor unpacks an archive into a directory and returns the file paths.
type Extractor interface {
	Extract(src, dir string) ([]string, error)
}

// Result locates the output of a completed work on the local file system.
type Result struct {
	WorkUID string `json:"work_uid"`
	DataUID string `json:"data_uid"`
	// Download is the artifact fetched from the service.
	Download string `json:"download"`
	// Path is the final result: the download itself or the extracted stdout.txt.
	Path string `json:"path"`
	// Files lists the extracted members of an archived result.
	Files []string `json:"files,omitempty"`
	Size  int64    `json:"size"`
}

// Results downloads and unpacks work results.
type Results struct {
	repo      *Repository
	extractor Extractor
	dir       string
	log       *zap.SugaredLogger
}

// NewResults creates a result pipeline writing into opts.ResultDir.
func NewResults(repo *Repository, extractor Extractor, opts Options, log *zap.SugaredLogger) *Results {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Results{
		repo:      repo,
		extractor: extractor,
		dir:       opts.withDefaults().ResultDir,
		log:       log.Named("results"),
	}
}

// Fetch retrieves the result of a completed work. It returns nil, nil when
// the work produced no result.
func (p *Results) Fetch(ctx context.Context, work *models.Work) (*Result, error) {
	if work.Status != models.WorkCompleted {
		return nil, &InvalidStateError{Kind: models.KindWork, UID: work.UID, Status: string(work.Status)}
	}
	if work.ResultURI == "" {
		p.log.Infow("work has no result", "uid", work.UID)
		return nil, nil
	}

	dataUID := uidFromURI(work.ResultURI)
	data, err := p.repo.FetchData(ctx, dataUID)
	if err != nil {
		return nil, err
	}
	if data.Status != models.DataAvailable {
		return nil, &InvalidStateError{Kind: models.KindData, UID: dataUID, Status: string(data.Status)}
	}
	uri := data.URI
	if uri == "" {
		uri = work.ResultURI
	}

	root, err := filepath.Abs(p.dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, err
	}
	download, err := resultPath(root, resultFileName(work.UID, data))
	if err != nil {
		return nil, err
	}

	n, err := p.repo.Download(ctx, uri, download)
	if err != nil {
		return nil, err
	}
	res := &Result{WorkUID: work.UID, DataUID: dataUID, Download: download, Path: download, Size: n}
	p.log.Infow("result downloaded", "uid", work.UID, "path", download, "size", n)

	isZip, err := archive.IsZip(download)
	if err != nil {
		return nil, err
	}
	if !isZip {
		return res, nil
	}

	prefix := safeSegment(work.SGID)
	if prefix == "" {
		prefix = safeSegment(work.UID)
	}
	dir, err := resultPath(root, prefix+"-result")
	if err != nil {
		return nil, err
	}

	files, err := p.extractor.Extract(download, dir)
	if err != nil {
		return nil, err
	}
	res.Files = files

	stdout, ok := findStdout(dir, files)
	if !ok {
		return nil, &NotFoundError{UID: filepath.Join(dir, StdoutFile)}
	}
	res.Path = stdout
	return res, nil
}

// resultFileName builds result.<workuid>[.<name>][.<type>|.txt]. Every part
// is reduced to a single safe path segment.
func resultFileName(workUID string, data *models.Data) string {
	name := "result." + safeSegment(workUID)
	if n := safeSegment(strings.ToLower(filepath.Base(data.Name))); n != "" {
		name += "." + n
	}
	if t := safeSegment(strings.ToLower(data.Type)); t != "" {
		name += "." + t
	} else {
		name += ".txt"
	}
	return name
}

// safeSegment keeps letters, digits, '.', '_' and '-', replaces anything
// else with '_' and strips leading dots.
func safeSegment(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '_', c == '-':
		default:
			b[i] = '_'
		}
	}
	return strings.TrimLeft(string(b), ".")
}

// resultPath joins name under root and refuses paths leaving root.
func resultPath(root, name string) (string, error) {
	path := filepath.Join(root, name)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeResultPath, name)
	}
	return path, nil
}

func findStdout(dir string, files []string) (string, bool) {
	top := filepath.Join(dir, StdoutFile)
	var nested string
	for _, f := range files {
		if f == top {
			return f, true
		}
		if nested == "" && filepath.Base(f) == StdoutFile {
			nested = f
		}
	}
	return nested, nested != ""
}
