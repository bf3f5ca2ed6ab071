package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/adambraimbridge/origami-build-service-v3/archive/archivetest"
	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/output"
	"github.com/adambraimbridge/origami-build-service-v3/registry"
)

// registryServer serves a MemoryRegistry over the HTTP registry protocol.
type registryServer struct {
	*httptest.Server
	reg *registry.MemoryRegistry
}

func newRegistryServer(t *testing.T) *registryServer {
	t.Helper()
	s := &registryServer{reg: registry.NewMemoryRegistry()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /packages/{name}", func(w http.ResponseWriter, r *http.Request) {
		records, err := s.reg.ListVersions(r.Context(), r.PathValue("name"))
		if err != nil || len(records) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"versions": records})
	})
	mux.HandleFunc("GET /packages/{name}/{version}", func(w http.ResponseWriter, r *http.Request) {
		record, err := s.reg.GetVersion(r.Context(), r.PathValue("name"), r.PathValue("version"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(record)
	})
	mux.HandleFunc("GET /objects/{path...}", func(w http.ResponseWriter, r *http.Request) {
		body, err := s.reg.Open(r.Context(), r.PathValue("path"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		defer body.Close()
		_, _ = io.Copy(w, body)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *registryServer) publish(t *testing.T, name, ver string, deps map[string]string) {
	t.Helper()
	record := registry.Record{Name: name, Version: ver, CodeLocation: name + "/" + ver + ".tgz"}
	if deps != nil {
		raw, err := json.Marshal(deps)
		require.NoError(t, err)
		record.Dependencies = raw
	}
	s.reg.Publish(record)

	manifest, err := record.Manifest()
	require.NoError(t, err)
	s.reg.PutObject(record.CodeLocation, archivetest.TarGz(t, "package/", map[string]string{
		"package.json":  string(manifest),
		"src/main.scss": "// " + name + "@" + ver + "\n",
	}))
}

func origamiServer(t *testing.T) *registryServer {
	s := newRegistryServer(t)
	s.publish(t, "o-grid", "5.0.0", map[string]string{"o-normalise": "^1.0.0"})
	s.publish(t, "o-grid", "5.1.0", map[string]string{"o-normalise": "^2.0.0"})
	s.publish(t, "o-normalise", "1.4.0", nil)
	s.publish(t, "o-normalise", "2.1.0", nil)
	s.publish(t, "o-buttons", "6.0.0", map[string]string{"o-normalise": "^1.0.0"})
	return s
}

type commandResult struct {
	stdout string
	stderr string
	err    error
}

// execute runs args against a root command carrying the global flags. The
// platform config directory is moved into a temp dir so no user file applies.
func execute(t *testing.T, args ...string) commandResult {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	console := output.NewConsole(&stdout, &stderr, output.VerbosityNormal)

	root := &cobra.Command{Use: "obs", SilenceUsage: true, SilenceErrors: true}
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	AddGlobalFlags(root.PersistentFlags())
	root.AddCommand(
		NewResolveCommand(console),
		NewInstallCommand(console),
		NewCacheCommand(console),
		NewRegistryCommand(console),
		NewConfigCommand(console),
		NewVersionCommand(console),
	)
	root.SetArgs(args)

	err := root.Execute()
	return commandResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}
