package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/types"
)

// PrintArtifact 打印 Artifact 摘要，按 Kind 分发
func PrintArtifact(a artifact.Artifact, w io.Writer) error {
	common := a.Meta().Common()
	fmt.Fprintf(w, "Kind:    %s\n", a.Kind())
	fmt.Fprintf(w, "UUID:    %s\n", a.UUID())
	fmt.Fprintf(w, "Version: %s\n", fmtVersion(common.Version))
	if common.CreatedAt != 0 {
		fmt.Fprintf(w, "Created: %s\n", time.Unix(common.CreatedAt, 0).UTC().Format(time.RFC3339))
	}

	switch v := a.(type) {
	case *artifact.ModelArtifact:
		printModel(v, w)
	case *artifact.DatasetArtifact:
		printDataset(v, w)
	case *artifact.TestArtifact:
		printTest(v, w)
	default:
		return fmt.Errorf("no printer for %T", a)
	}
	return nil
}

func printModel(m *artifact.ModelArtifact, w io.Writer) {
	sig := m.Signature()
	fmt.Fprintf(w, "Name:    %s\n", sig.Name)
	fmt.Fprintf(w, "Type:    %s\n", sig.ModelType)
	if sig.BatchSize > 0 {
		fmt.Fprintf(w, "Batch:   %d\n", sig.BatchSize)
	}
	if len(sig.FeatureNames) > 0 {
		fmt.Fprintf(w, "Features: %s\n", strings.Join(sig.FeatureNames, ", "))
	}
	if len(sig.ClassificationLabels) > 0 {
		fmt.Fprintf(w, "Labels:  %s (threshold %g)\n", strings.Join(sig.ClassificationLabels, ", "), sig.ClassificationThreshold)
	}

	fmt.Fprintf(w, "\n")
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "PARAM\tSIZE\n")
	for _, name := range m.ParamNames() {
		fmt.Fprintf(tw, "%s\t%d\n", name, len(m.Params[name]))
	}
	tw.Flush()
}

func printDataset(d *artifact.DatasetArtifact, w io.Writer) {
	dm := d.Meta().(*artifact.DatasetMeta)
	fmt.Fprintf(w, "Name:    %s\n", dm.Name)
	fmt.Fprintf(w, "Rows:    %d\n", dm.RowCount)
	if dm.Target != "" {
		fmt.Fprintf(w, "Target:  %s\n", dm.Target)
	}

	fmt.Fprintf(w, "\n")
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "COLUMN\tTYPE\n")
	for _, col := range d.Columns {
		fmt.Fprintf(tw, "%s\t%s\n", col, dm.ColumnTypes[col])
	}
	tw.Flush()
}

func printTest(t *artifact.TestArtifact, w io.Writer) {
	tm := t.Meta().(*artifact.TestMeta)
	fmt.Fprintf(w, "Name:    %s\n", tm.Name)
	if tm.DisplayName != "" {
		fmt.Fprintf(w, "Display: %s\n", tm.DisplayName)
	}
	if len(tm.Tags) > 0 {
		fmt.Fprintf(w, "Tags:    %s\n", strings.Join(tm.Tags, ", "))
	}
	fmt.Fprintf(w, "Code:    %s\n", fmtSize(int64(len(t.Code))))
}

// Entry 是本地缓存中的一条记录
type Entry struct {
	Namespace types.Namespace
	Kind      types.Kind
	UUID      types.UUID
	Version   int64
	Dir       string // 为空表示只存在于远端注册表
}

// PrintEntries 以表格打印缓存列表 (类似 ls -l)
func PrintEntries(entries []Entry, w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "NAMESPACE\tKIND\tUUID\tVERSION\tSIZE\n")
	for _, e := range entries {
		size := "-"
		if e.Dir != "" {
			size = fmtSize(dirSize(e.Dir))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Namespace.OrGlobal(), e.Kind, e.UUID, fmtVersion(e.Version), size)
	}
	tw.Flush()
}

func fmtVersion(v int64) string {
	if v == 0 {
		return "unregistered"
	}
	return fmt.Sprintf("v%d", v)
}

// dirSize 统计目录下的文件总大小，出错时按 0 处理
func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}

func fmtSize(s int64) string {
	if s < 1024 {
		return fmt.Sprintf("%dB", s)
	} else if s < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(s)/1024)
	}
	return fmt.Sprintf("%.2fMB", float64(s)/1024/1024)
}
