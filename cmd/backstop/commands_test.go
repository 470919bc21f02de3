package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"mercator-hq/backstop/pkg/cli"
)

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	for _, want := range []string{"Backstop " + Version, "Git Commit:", "Go Version:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if !strings.Contains(out, "backstop") {
		t.Errorf("completion script does not mention backstop")
	}

	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := writeConfig(t, filepath.Join(t.TempDir(), "x.db"), "")
		out, err := execute(t, "validate", "--config", cfg)
		if err != nil {
			t.Fatalf("validate failed: %v", err)
		}
		if !strings.Contains(out, "Configuration valid") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if !strings.Contains(out, "Partitions: 2") {
			t.Errorf("output missing partition count:\n%s", out)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := writeConfig(t, filepath.Join(t.TempDir(), "x.db"), "restore:\n  parallelism: -1\n")
		_, err := execute(t, "validate", "--config", cfg)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if code := cli.ExitCode(err); code != cli.ExitConfig {
			t.Errorf("ExitCode() = %d, want %d", code, cli.ExitConfig)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
		if code := cli.ExitCode(err); code != cli.ExitConfig {
			t.Errorf("ExitCode() = %d, want %d", code, cli.ExitConfig)
		}
	})
}

func TestBackupsList(t *testing.T) {
	cfg := writeConfig(t, seedStore(t), "")

	out, err := execute(t, "backups", "list", "--config", cfg, "--partition", "2", "--format", "csv")
	if err != nil {
		t.Fatalf("backups list failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header and 3 rows:\n%s", len(lines), out)
	}
	if lines[0] != "PARTITION,NODE,CHECKPOINT,STATUS,POSITION,TAKEN,REASON" {
		t.Errorf("header = %q", lines[0])
	}
	for i, line := range lines[1:] {
		want := "2,0," + strconv.FormatInt(checkpoint(i), 10) + ",completed," + strconv.Itoa((i+1)*100) + ","
		if !strings.HasPrefix(line, want) {
			t.Errorf("row %d = %q, want prefix %q", i, line, want)
		}
	}
}

func TestBackupsList_StatusFilter(t *testing.T) {
	cfg := writeConfig(t, seedStore(t), "")

	out, err := execute(t, "backups", "list", "--config", cfg, "--status", "failed", "--format", "json")
	if err != nil {
		t.Fatalf("backups list failed: %v", err)
	}
	var got struct {
		Backups []json.RawMessage `json:"backups"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got.Backups) != 0 {
		t.Errorf("got %d failed backups, want 0", len(got.Backups))
	}

	if _, err := execute(t, "backups", "list", "--config", cfg, "--status", "lost"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestBackupsList_PartitionOutOfRange(t *testing.T) {
	cfg := writeConfig(t, seedStore(t), "")
	if _, err := execute(t, "backups", "list", "--config", cfg, "--partition", "3"); err == nil {
		t.Error("expected error for partition beyond the cluster")
	}
}

func TestRangesList(t *testing.T) {
	cfg := writeConfig(t, seedStore(t), "")

	out, err := execute(t, "ranges", "list", "--config", cfg, "--format", "json")
	if err != nil {
		t.Fatalf("ranges list failed: %v", err)
	}

	var rows []rangeRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d ranges, want 2", len(rows))
	}
	for i, row := range rows {
		if row.Partition != i+1 || row.State != "complete" {
			t.Errorf("row %d = %+v", i, row)
		}
		if row.First != checkpoint(0) || row.Last != checkpoint(2) {
			t.Errorf("row %d spans [%d, %d], want [%d, %d]", i, row.First, row.Last, checkpoint(0), checkpoint(2))
		}
		if row.From != "2024-10-01T00:00:00Z" || row.To != "2024-10-01T02:00:00Z" {
			t.Errorf("row %d time span = %s..%s", i, row.From, row.To)
		}
	}
}

func TestRetentionPrune(t *testing.T) {
	cfg := writeConfig(t, seedStore(t), "")

	t.Run("dry run keeps backups", func(t *testing.T) {
		out, err := execute(t, "retention", "prune", "--config", cfg, "--dry-run", "--format", "json")
		if err != nil {
			t.Fatalf("retention prune failed: %v", err)
		}
		var report struct {
			DryRun     bool `json:"dry_run"`
			Partitions []struct {
				Partition      int               `json:"partition"`
				DeletedBackups []json.RawMessage `json:"deleted_backups"`
			} `json:"partitions"`
		}
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		if !report.DryRun {
			t.Error("report should be marked dry run")
		}
		if len(report.Partitions) != 2 {
			t.Fatalf("got %d partitions, want 2", len(report.Partitions))
		}
		for _, p := range report.Partitions {
			if len(p.DeletedBackups) != 1 {
				t.Errorf("partition %d would delete %d backups, want 1", p.Partition, len(p.DeletedBackups))
			}
		}

		list, err := execute(t, "backups", "list", "--config", cfg, "--format", "csv")
		if err != nil {
			t.Fatalf("backups list failed: %v", err)
		}
		if rows := strings.Count(strings.TrimSpace(list), "\n"); rows != 6 {
			t.Errorf("dry run changed the store: %d backups remain, want 6", rows)
		}
	})

	t.Run("prune deletes and moves markers", func(t *testing.T) {
		out, err := execute(t, "retention", "prune", "--config", cfg)
		if err != nil {
			t.Fatalf("retention prune failed: %v", err)
		}
		if !strings.HasPrefix(out, "PARTITION") {
			t.Errorf("unexpected output:\n%s", out)
		}

		list, err := execute(t, "backups", "list", "--config", cfg, "--format", "csv")
		if err != nil {
			t.Fatalf("backups list failed: %v", err)
		}
		if strings.Contains(list, ","+strconv.FormatInt(checkpoint(0), 10)+",") {
			t.Errorf("oldest backup survived pruning:\n%s", list)
		}
		if rows := strings.Count(strings.TrimSpace(list), "\n"); rows != 4 {
			t.Errorf("%d backups remain, want 4", rows)
		}

		ranges, err := execute(t, "ranges", "list", "--config", cfg, "--format", "json")
		if err != nil {
			t.Fatalf("ranges list failed: %v", err)
		}
		var rows []rangeRow
		if err := json.Unmarshal([]byte(ranges), &rows); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		for _, row := range rows {
			if row.First != checkpoint(1) {
				t.Errorf("partition %d range starts at %d, want %d", row.Partition, row.First, checkpoint(1))
			}
		}
	})
}

func TestRestorePlan(t *testing.T) {
	cfg := writeConfig(t, seedStore(t), "")

	out, err := execute(t, "restore", "plan", "--config", cfg, "--position", "1=250", "--position", "2=250")
	if err != nil {
		t.Fatalf("restore plan failed: %v", err)
	}
	want := "Global checkpoint: " + strconv.FormatInt(checkpoint(2), 10)
	if !strings.Contains(out, want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}
	if !strings.Contains(out, "SAFE START") {
		t.Errorf("output missing table:\n%s", out)
	}
}

func TestRestorePlan_JSON(t *testing.T) {
	cfg := writeConfig(t, seedStore(t), "")

	out, err := execute(t, "restore", "plan", "--config", cfg,
		"--position", "1=150", "--position", "2=250", "--format", "json")
	if err != nil {
		t.Fatalf("restore plan failed: %v", err)
	}
	var plan struct {
		GlobalCheckpointID int64              `json:"global_checkpoint_id"`
		BackupIDs          map[string][]int64 `json:"backup_ids"`
	}
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if plan.GlobalCheckpointID != checkpoint(2) {
		t.Errorf("global checkpoint = %d, want %d", plan.GlobalCheckpointID, checkpoint(2))
	}
	if got := plan.BackupIDs["1"]; len(got) != 3 {
		t.Errorf("partition 1 chain = %v, want all three backups", got)
	}
	if got := plan.BackupIDs["2"]; len(got) != 2 {
		t.Errorf("partition 2 chain = %v, want the last two backups", got)
	}
}

func TestRestorePlan_PositionsFile(t *testing.T) {
	dir := t.TempDir()
	positions := filepath.Join(dir, "positions.yaml")
	if err := os.WriteFile(positions, []byte("partitions:\n  1: 250\n  2: 250\n"), 0o600); err != nil {
		t.Fatalf("failed to write positions: %v", err)
	}
	cfg := writeConfig(t, seedStore(t), "")
	cfgWithPositions := filepath.Join(dir, "with-positions.yaml")
	data, err := os.ReadFile(cfg)
	if err != nil {
		t.Fatal(err)
	}
	content := strings.Replace(string(data), "  partition_count: 2\n", "  partition_count: 2\n  positions_file: "+positions+"\n", 1)
	if err := os.WriteFile(cfgWithPositions, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "restore", "plan", "--config", cfgWithPositions); err != nil {
		t.Fatalf("restore plan failed: %v", err)
	}
}

func TestRestorePlan_Errors(t *testing.T) {
	cfg := writeConfig(t, seedStore(t), "")

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{
			name:     "no positions",
			args:     nil,
			wantCode: cli.ExitConfig,
		},
		{
			name:     "missing partition position",
			args:     []string{"--position", "1=250"},
			wantCode: cli.ExitNoPlan,
		},
		{
			name:     "position before every backup",
			args:     []string{"--position", "1=50", "--position", "2=250"},
			wantCode: cli.ExitNoPlan,
		},
		{
			name:     "window outside the range",
			args:     []string{"--position", "1=250", "--position", "2=250", "--to", "2024-11-01T00:00:00Z"},
			wantCode: cli.ExitNoPlan,
		},
		{
			name:     "bad format",
			args:     []string{"--format", "xml"},
			wantCode: cli.ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"restore", "plan", "--config", cfg}, tt.args...)
			_, err := execute(t, args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := cli.ExitCode(err); code != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d (err: %v)", code, tt.wantCode, err)
			}
		})
	}
}

func TestRetentionPrune_WindowOverride(t *testing.T) {
	cfg := writeConfig(t, seedStore(t), "")

	out, err := execute(t, "retention", "prune", "--config", cfg, "--dry-run", "--window", "3h", "--format", "csv")
	if err != nil {
		t.Fatalf("retention prune failed: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		fields := strings.Split(line, ",")
		if len(fields) < 3 || fields[2] != "0" {
			t.Errorf("row %q deletes backups inside a 3h window", line)
		}
	}
}

func TestRestorePlan_PositionsFileFlag(t *testing.T) {
	positions := filepath.Join(t.TempDir(), "positions.yaml")
	if err := os.WriteFile(positions, []byte("partitions:\n  1: 250\n  2: 250\n"), 0o600); err != nil {
		t.Fatalf("failed to write positions: %v", err)
	}
	cfg := writeConfig(t, seedStore(t), "")

	out, err := execute(t, "restore", "plan", "--config", cfg, "--positions-file", positions, "--format", "csv")
	if err != nil {
		t.Fatalf("restore plan failed: %v", err)
	}
	if !strings.HasPrefix(out, "PARTITION,SAFE START,EXPORTED POSITION,BACKUPS,CHECKPOINTS") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
