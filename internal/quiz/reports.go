package quiz

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/classroom/internal/model"
)

var reportNamePattern = regexp.MustCompile(`^report_([1-9][0-9]*)\.md$`)

// archiveDir holds the reports of deleted accounts. Its leading dot keeps
// it out of reach of any username.
const archiveDir = ".deleted"

// ReportName returns the file name of the n-th report.
func ReportName(n int) string {
	return "report_" + strconv.Itoa(n) + ".md"
}

// parseReportName returns the sequence number encoded in name, or false
// if name is not a report file name.
func parseReportName(name string) (int, bool) {
	m := reportNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ReportDir stores score reports as Markdown files, one directory per user.
type ReportDir struct {
	root string
}

// NewReportDir returns a ReportDir rooted at root. The directory is
// created lazily on the first report.
func NewReportDir(root string) *ReportDir {
	return &ReportDir{root: root}
}

func validDirName(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".") && !strings.ContainsAny(name, `/\`)
}

func (d *ReportDir) userDir(username string) (string, error) {
	if !validDirName(username) {
		return "", fmt.Errorf("invalid username %q", username)
	}
	return filepath.Join(d.root, username), nil
}

// archive moves the user's report directory to
// <root>/.deleted/<username>-<unix>. It returns the archive name, or ""
// when the user has no reports.
func (d *ReportDir) archive(username string, at time.Time) (string, error) {
	src, err := d.userDir(username)
	if err != nil {
		// Nothing is ever stored under an invalid name.
		return "", nil
	}
	if _, err := os.Lstat(src); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stat report dir: %w", err)
	}

	base := filepath.Join(d.root, archiveDir)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	stem := fmt.Sprintf("%s-%d", username, at.Unix())
	for i := 0; ; i++ {
		name := stem
		if i > 0 {
			name = fmt.Sprintf("%s_%d", stem, i)
		}
		dst := filepath.Join(base, name)
		if _, err := os.Lstat(dst); err == nil {
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return "", fmt.Errorf("archive reports: %w", err)
		}
		return name, nil
	}
}

// create writes a new report for username. The sequence number starts at
// the count of existing reports plus one and moves forward past any name
// that already exists, so no report is ever overwritten.
func (d *ReportDir) create(username string, render func(seq int) []byte) (string, int, error) {
	dir, err := d.userDir(username)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create report dir: %w", err)
	}
	existing, err := d.List(username)
	if err != nil {
		return "", 0, err
	}

	for seq := len(existing) + 1; ; seq++ {
		name := ReportName(seq)
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("create report: %w", err)
		}
		_, werr := f.Write(render(seq))
		cerr := f.Close()
		if werr != nil {
			return "", 0, fmt.Errorf("write report: %w", werr)
		}
		if cerr != nil {
			return "", 0, fmt.Errorf("close report: %w", cerr)
		}
		return name, seq, nil
	}
}

// List returns the user's reports ordered by sequence number.
func (d *ReportDir) List(username string) ([]model.ReportInfo, error) {
	dir, err := d.userDir(username)
	if err != nil {
		return nil, err
	}
	return listDir(dir, username, "")
}

func listDir(dir, username, archive string) ([]model.ReportInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read report dir: %w", err)
	}

	var out []model.ReportInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		seq, ok := parseReportName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat report %s: %w", e.Name(), err)
		}
		out = append(out, model.ReportInfo{
			Username:  username,
			Archive:   archive,
			Name:      e.Name(),
			Sequence:  seq,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// ListAll returns every user's reports grouped by username, followed by
// the archived reports of deleted accounts.
func (d *ReportDir) ListAll() ([]model.ReportInfo, error) {
	entries, err := os.ReadDir(d.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reports root: %w", err)
	}
	var out []model.ReportInfo
	for _, e := range entries {
		if !e.IsDir() || !validDirName(e.Name()) {
			continue
		}
		reports, err := d.List(e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, reports...)
	}

	base := filepath.Join(d.root, archiveDir)
	archived, err := os.ReadDir(base)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}
	for _, e := range archived {
		if !e.IsDir() || !validDirName(e.Name()) {
			continue
		}
		username, _, _ := strings.Cut(e.Name(), "-")
		reports, err := listDir(filepath.Join(base, e.Name()), username, e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, reports...)
	}
	return out, nil
}

// open reads the report an entry of ListAll describes, archived or not.
func (d *ReportDir) open(r model.ReportInfo) ([]byte, error) {
	if r.Archive == "" {
		return d.Read(r.Username, r.Name)
	}
	if _, ok := parseReportName(r.Name); !ok || !validDirName(r.Archive) {
		return nil, ErrReportNotFound
	}
	data, err := os.ReadFile(filepath.Join(d.root, archiveDir, r.Archive, r.Name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read archived report: %w", err)
	}
	return data, nil
}

// Read returns the content of one report. Names that are not of the
// form report_<n>.md are rejected with ErrReportNotFound.
func (d *ReportDir) Read(username, name string) ([]byte, error) {
	if _, ok := parseReportName(name); !ok {
		return nil, ErrReportNotFound
	}
	dir, err := d.userDir(username)
	if err != nil {
		return nil, ErrReportNotFound
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return data, nil
}
