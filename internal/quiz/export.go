package quiz

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/pavelanni/classroom/internal/model"
)

// Export writes a zip archive holding every stored report under
// reports/<username>/, the reports of deleted accounts under
// reports/.deleted/<archive>/, plus an index.json summary.
func (m *Machine) Export(w io.Writer) error {
	users, err := m.store.ExportUserSummaries()
	if err != nil {
		return fmt.Errorf("export users: %w", err)
	}
	reports, err := m.reports.ListAll()
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	index := model.ReportExport{
		GeneratedAt: m.now().UTC(),
		Users:       users,
		Reports:     reports,
	}

	zw := zip.NewWriter(w)
	for _, r := range reports {
		data, err := m.reports.open(r)
		if err != nil {
			return fmt.Errorf("read %s/%s: %w", r.Username, r.Name, err)
		}
		name := path.Join("reports", r.Username, r.Name)
		if r.Archive != "" {
			name = path.Join("reports", archiveDir, r.Archive, r.Name)
		}
		if err := writeZipFile(zw, name, data, r.CreatedAt); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := writeZipFile(zw, "index.json", data, index.GeneratedAt); err != nil {
		return err
	}
	return zw.Close()
}

func writeZipFile(zw *zip.Writer, name string, data []byte, mod time.Time) error {
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: mod,
	})
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
