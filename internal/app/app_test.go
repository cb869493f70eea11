package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetflow/internal/config"
	"github.com/JonMunkholm/sheetflow/internal/core"
	"github.com/JonMunkholm/sheetflow/internal/history"
	"github.com/JonMunkholm/sheetflow/internal/transport"
)

const testSchemas = `{"CLI": ["CODIGO", "NOMBRE"], "ART": {"columnas": ["SKU", "PRECIO"]}}`

func testConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	root := t.TempDir()
	schemaFile := filepath.Join(root, "esquemas.json")
	require.NoError(t, os.WriteFile(schemaFile, []byte(testSchemas), 0o644))

	return &config.Config{
		Paths: config.PathsConfig{
			InputXLSX:        filepath.Join(root, "entrada_xlsx"),
			InputCSV:         filepath.Join(root, "entrada_csv"),
			Output:           filepath.Join(root, "salida"),
			SchemaFile:       schemaFile,
			ReplacementsFile: filepath.Join(root, "reemplazos.json"),
		},
		Format: config.FormatConfig{
			Mode:             mode,
			InputSeparator:   ";",
			OutputSeparator:  "|",
			DecimalSeparator: ".",
			KeepInput:        true,
			CleanOutput:      true,
		},
	}
}

func writeInput(t *testing.T, cfg *config.Config, name, content string) string {
	t.Helper()
	dir := cfg.InputDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type recordingUploader struct {
	dirs []string
	err  error
}

func (u *recordingUploader) Upload(ctx context.Context, dir string) (transport.Result, error) {
	u.dirs = append(u.dirs, dir)
	if u.err != nil {
		return transport.Result{}, u.err
	}
	return transport.Result{Uploaded: []string{"CLI.csv"}}, nil
}

func TestNew_Defaults(t *testing.T) {
	cfg := testConfig(t, "csv")
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, core.ModeCSV, a.Mode())
	assert.Equal(t, 2, a.Registry().Len())
	assert.IsType(t, &history.MemoryStore{}, a.History())
	assert.IsType(t, transport.DryRunUploader{}, a.uploader)
	assert.DirExists(t, cfg.Paths.Output)
}

func TestNew_MissingSchemaFileDegrades(t *testing.T) {
	cfg := testConfig(t, "text")
	cfg.Paths.SchemaFile = filepath.Join(t.TempDir(), "missing.json")

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, a.Registry().Degraded())
	assert.Zero(t, a.Registry().Len())
}

func TestNew_BadTransport(t *testing.T) {
	cfg := testConfig(t, "csv")
	cfg.Transport = config.TransportConfig{Endpoint: "localhost:9000", Bucket: "b"}

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create uploader")
}

func TestRunOnce_ConvertsUploadsAndRecords(t *testing.T) {
	cfg := testConfig(t, "csv")
	cfg.Format.KeepInput = false
	up := &recordingUploader{}
	store := history.NewMemoryStore(10)

	a, err := New(context.Background(), cfg, WithUploader(up), WithHistory(store))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Output, "stale.csv"), []byte("old"), 0o644))
	input := writeInput(t, cfg, "CLI_enero.csv", "CODIGO;NOMBRE\nX1;Ana\n")
	rejected := writeInput(t, cfg, "otro.csv", "A;B;C\n1;2;3\n")

	ctx := core.ContextWithTrigger(context.Background(), core.TriggerCLI)
	res, err := a.RunOnce(ctx)
	require.NoError(t, err)

	require.Len(t, res.Report.Succeeded, 1)
	require.Len(t, res.Report.Rejected, 1)
	assert.Equal(t, "CLI", res.Report.Succeeded[0].TypeID)
	assert.Equal(t, "otro.csv", res.Report.Rejected[0].File)
	assert.False(t, res.OK())

	out, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "CLI.csv"))
	require.NoError(t, err)
	assert.Equal(t, "CODIGO|NOMBRE\nX1|Ana\n", string(out))
	assert.NoFileExists(t, filepath.Join(cfg.Paths.Output, "stale.csv"), "output cleaned before the run")

	assert.NoFileExists(t, input, "converted input removed")
	assert.FileExists(t, rejected, "rejected input kept")

	assert.Equal(t, []string{cfg.Paths.Output}, up.dirs)
	require.NotNil(t, res.Upload)

	saved, err := store.GetRun(context.Background(), res.Report.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.TriggerCLI, saved.Trigger)
	assert.Len(t, saved.Rejected, 1)
}

func TestRunOnce_NoInputsSkips(t *testing.T) {
	cfg := testConfig(t, "csv")
	up := &recordingUploader{}
	store := history.NewMemoryStore(10)
	a, err := New(context.Background(), cfg, WithUploader(up), WithHistory(store))
	require.NoError(t, err)

	previous := filepath.Join(cfg.Paths.Output, "CLI.csv")
	require.NoError(t, os.WriteFile(previous, []byte("CODIGO|NOMBRE\n"), 0o644))

	res, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.FileExists(t, previous, "skipped run leaves the output alone")
	assert.Empty(t, up.dirs)

	runs, err := store.ListRuns(context.Background(), history.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunOnce_NothingConvertedIsNotUploaded(t *testing.T) {
	cfg := testConfig(t, "csv")
	up := &recordingUploader{}
	a, err := New(context.Background(), cfg, WithUploader(up))
	require.NoError(t, err)

	writeInput(t, cfg, "CLI.csv", "CODIGO;NOMBRE;EXTRA\nX1;Ana;1\n")

	res, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Report.Rejected, 1)
	assert.Equal(t, core.KindColumnCount, res.Report.Rejected[0].ErrorKind)
	assert.Nil(t, res.Upload)
	assert.Empty(t, up.dirs)
}

func TestRunOnce_UploadErrorReported(t *testing.T) {
	cfg := testConfig(t, "csv")
	up := &recordingUploader{err: errors.New("ensure bucket: connection refused")}
	a, err := New(context.Background(), cfg, WithUploader(up))
	require.NoError(t, err)

	writeInput(t, cfg, "ART.csv", "SKU;PRECIO\nA-1;10\n")

	res, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Report.OK())
	assert.Contains(t, res.UploadError, "connection refused")
	assert.False(t, res.OK())
}

func TestRunOnce_TextMode(t *testing.T) {
	cfg := testConfig(t, "text")
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	writeInput(t, cfg, "ART_lista.csv", "SKU;PRECIO\nA-1;10,5\n")

	res, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, res.Report.OK(), "report = %+v", res.Report)
	assert.Equal(t, core.ModeText, res.Report.Mode)
	require.NotNil(t, res.Upload)
	assert.True(t, res.Upload.DryRun)

	out, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "ART.csv"))
	require.NoError(t, err)
	assert.Equal(t, "SKU|PRECIO\nA-1|10,5\n", string(out))
}

func TestRunOnce_Cancelled(t *testing.T) {
	cfg := testConfig(t, "csv")
	store := history.NewMemoryStore(10)
	a, err := New(context.Background(), cfg, WithHistory(store))
	require.NoError(t, err)

	writeInput(t, cfg, "CLI.csv", "CODIGO;NOMBRE\nX1;Ana\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := a.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Report.Succeeded)

	runs, err := store.ListRuns(context.Background(), history.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, runs, 1, "cancelled run still recorded")
}

func TestRunOnce_InProgress(t *testing.T) {
	cfg := testConfig(t, "csv")
	writeInput(t, cfg, "CLI.csv", "CODIGO;NOMBRE\nX1;Ana\n")
	a, err := New(context.Background(), cfg, WithUploader(&recordingUploader{}))
	require.NoError(t, err)

	require.NoError(t, a.gate.Acquire(context.Background()))
	_, running := a.Running()
	assert.True(t, running)

	_, err = a.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	a.gate.Release()
	res, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Report.Succeeded, 1)
	_, running = a.Running()
	assert.False(t, running)
}

func TestValidate(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, "text"))
	require.NoError(t, err)

	assert.NoError(t, a.Validate("CLI", "CODIGO;NOMBRE\n1;Ana\n"))

	err = a.Validate("CLI", "CODIGO\n")
	require.Error(t, err)
	assert.Equal(t, core.KindColumnCount, core.Kind(err))
}
