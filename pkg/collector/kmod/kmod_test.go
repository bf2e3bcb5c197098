package kmod

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueless-admin/cladm/pkg/response"
)

func TestParseModuleLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Module
	}{
		{
			name: "no holders",
			line: "nvme 49152 0 - Live 0xffffffffc0a00000",
			want: Module{Name: "nvme", Size: 49152, UsedByCount: 0, UsedBy: []string{}, State: "Live", Offset: "0xffffffffc0a00000"},
		},
		{
			name: "with holders",
			line: "snd_pcm 143360 2 snd_hda_intel,snd_hda_codec, Live 0x0000000000000000",
			want: Module{Name: "snd_pcm", Size: 143360, UsedByCount: 2, UsedBy: []string{"snd_hda_intel", "snd_hda_codec"}, State: "Live", Offset: "0x0000000000000000"},
		},
		{
			name: "without offset",
			line: "dm_mod 184320 1 dm_crypt, Live",
			want: Module{Name: "dm_mod", Size: 184320, UsedByCount: 1, UsedBy: []string{"dm_crypt"}, State: "Live"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := parseModuleLine(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.want, m)
		})
	}

	_, ok := parseModuleLine("short")
	assert.False(t, ok)
	_, ok = parseModuleLine("name notanumber 0")
	assert.False(t, ok)
}

func TestLoadedModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules")
	require.NoError(t, os.WriteFile(path, []byte(`nvme 49152 0 - Live 0xffffffffc0a00000
snd_pcm 143360 2 snd_hda_intel,snd_hda_codec, Live 0x0000000000000000

`), 0o644))

	c := &Collector{ProcModules: path}
	env := c.LoadedModules(context.Background())

	require.Equal(t, response.StatusSuccess, env.Status)
	data := env.Data.(loadedData)
	assert.Equal(t, 2, data.TotalModules)
}

func TestLoadedModulesMissingFile(t *testing.T) {
	c := &Collector{ProcModules: filepath.Join(t.TempDir(), "missing")}
	env := c.LoadedModules(context.Background())

	require.Equal(t, response.StatusFailure, env.Status)
	assert.Equal(t, response.CodeIOFailure, env.Error.Code)
}

func TestAllModulesClassification(t *testing.T) {
	root := t.TempDir()

	mkModule := func(name string, markers ...string) {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for _, m := range markers {
			require.NoError(t, os.WriteFile(filepath.Join(dir, m), []byte("1\n"), 0o644))
		}
	}

	mkModule("ext4", "refcnt")
	mkModule("overlay", "initstate")
	mkModule("bridge", "holders")
	mkModule("vt") // builtin: no markers

	c := &Collector{SysModuleRoot: root}
	env := c.AllModules(context.Background())

	require.Equal(t, response.StatusSuccess, env.Status)
	data := env.Data.(allData)
	require.Equal(t, 4, data.TotalModules)

	states := map[string]string{}
	for _, m := range data.Modules {
		states[m.Name] = m.State
	}
	assert.Equal(t, "loaded", states["ext4"])
	assert.Equal(t, "loaded", states["overlay"])
	assert.Equal(t, "loaded", states["bridge"])
	assert.Equal(t, "builtin", states["vt"])
}
