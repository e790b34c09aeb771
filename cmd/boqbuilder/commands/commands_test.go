package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	"git.home.luguber.info/inful/boqbuilder/internal/convert"
	derrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/report"
	"git.home.luguber.info/inful/boqbuilder/internal/testutil/dxfgen"
)

const catalogCSV = "raw_block_name,std_item_code,std_desc,std_category,std_uom\n" +
	"DOOR-900,D-900,Door 900mm,Doors,each\n" +
	"CHAIR-01,F-001,Office chair,Furniture,each\n"

// execute parses args and runs the selected command, returning stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BOQ_CONFIG", "")
	var out bytes.Buffer
	var cli CLI
	g := &Global{Out: &out, Err: io.Discard}
	parser, err := kong.New(&cli,
		kong.Name("boqbuilder"),
		kong.Vars{"version": "test"},
		kong.Bind(g),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = kctx.Run(g, &cli)
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func plan(t *testing.T, dir string) string {
	t.Helper()
	return dxfgen.New().
		Block("DOOR-900").
		Block("CHAIR-01").
		Insert("A-DOOR", "DOOR-900", 0, 0, nil).
		Insert("A-DOOR", "DOOR-900", 5, 0, nil).
		Insert("A-FURN", "CHAIR-01", 2, 2, nil).
		WriteFile(t, dir, "plan.dxf")
}

func TestRunProcessesDrawing(t *testing.T) {
	dir := t.TempDir()
	in := plan(t, dir)
	cat := writeFile(t, dir, "catalog.csv", catalogCSV)
	work := filepath.Join(dir, "work")

	out, err := execute(t, "run", in, "--catalog", cat, "--workdir", work, "--job-id", "job-7")
	require.NoError(t, err)
	assert.Contains(t, out, "Job:        job-7")
	assert.Contains(t, out, "Status:     success")
	assert.Contains(t, out, "Converter:  "+convert.Passthrough)
	assert.FileExists(t, filepath.Join(work, "job-7", "out", report.WorkbookFile))
}

func TestRunJSONOutput(t *testing.T) {
	dir := t.TempDir()
	in := plan(t, dir)

	out, err := execute(t, "run", in, "--workdir", filepath.Join(dir, "work"), "--job-id", "j", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"job_id": "j"`)
	assert.Contains(t, out, `"status": "success"`)
}

func TestRunMissingDrawingExitCode(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "run", filepath.Join(dir, "absent.dwg"), "--workdir", filepath.Join(dir, "work"))
	require.Error(t, err)
	assert.Contains(t, out, "Status:     failed")

	adapter := derrors.NewCLIErrorAdapter(false, nil)
	assert.Equal(t, 3, adapter.ExitCodeFor(err))
}

func TestRunUnreadableDrawingIsClassified(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "junk.dxf", "hello\nworld\n")

	_, err := execute(t, "run", in, "--workdir", filepath.Join(dir, "work"))
	require.Error(t, err)
	ce, ok := derrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, derrors.CategoryParse, ce.Category())
	stage, _ := ce.Context().GetString("stage")
	assert.Equal(t, "extracting", stage)
	kind, _ := ce.Context().GetString("kind")
	assert.Equal(t, "UnreadableDrawing", kind)
	assert.NotEqual(t, 0, derrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "converters")
	require.Error(t, err)
	ce, ok := derrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, derrors.CategoryConfig, ce.Category())
}

func TestInitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boq.yaml")

	out, err := execute(t, "--config", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized successfully")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Daemon.HTTPAddr, cfg.Daemon.HTTPAddr)

	_, err = execute(t, "--config", path, "init")
	require.Error(t, err)
	_, err = execute(t, "--config", path, "init", "--force")
	require.NoError(t, err)
}

func TestCatalogCommand(t *testing.T) {
	dir := t.TempDir()
	cat := writeFile(t, dir, "catalog.csv", catalogCSV)

	out, err := execute(t, "catalog", cat, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "2 entries")
	assert.Contains(t, out, "D-900")
	assert.Contains(t, out, "Office chair")

	_, err = execute(t, "catalog", filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	ce, ok := derrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, derrors.CategoryNotFound, ce.Category())
}

func TestPrintBackends(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printBackends(&buf, []convert.BackendStatus{
		{Name: "oda", Priority: 1, Binary: "/opt/oda/ODAFileConverter", Available: true},
		{Name: "libredwg", Priority: 2},
	}))
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "yes")
	assert.Contains(t, string(lines[2]), "no")
	assert.Contains(t, string(lines[2]), "-")
}

func TestRunExecuteHonoursOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cmd := &RunCmd{Drawing: plan(t, dir), Workdir: filepath.Join(dir, "w"), JobID: "x"}

	var buf bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), &buf, cfg, convert.ExecRunner{}))
	assert.Equal(t, filepath.Join(dir, "w"), cfg.Workspace.BaseDir)
	assert.DirExists(t, filepath.Join(dir, "w", "x"))
}
