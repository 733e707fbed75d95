/*
Copyright (c) Vijay Boopathy.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package metadb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/utils"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/verifier"
)

var (
	VERIFICATION_RUNS_TABLE_NAME = "verification_runs"
)

const SQLITE_OPTIONS = "?_txlock=exclusive&_timeout=30000"

func GetMetaDBPath(exportDir string) string {
	return filepath.Join(exportDir, "metainfo", "meta.db")
}

func CreateAndInitMetaDBIfRequired(exportDir string) error {
	metaDBPath := GetMetaDBPath(exportDir)
	if utils.FileOrFolderExists(metaDBPath) {
		// already created and inited.
		return nil
	}
	err := os.MkdirAll(filepath.Dir(metaDBPath), 0755)
	if err != nil {
		return fmt.Errorf("not able to create metainfo dir: %w", err)
	}
	err = createMetaDBFile(metaDBPath)
	if err != nil {
		return err
	}
	return initMetaDB(metaDBPath)
}

func createMetaDBFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("not able to create meta db file :%w", err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("error while closing meta db file: %w", err)
	}
	return nil
}

func initMetaDB(path string) error {
	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s%s", path, SQLITE_OPTIONS))
	if err != nil {
		return fmt.Errorf("error while opening meta db :%w", err)
	}
	defer conn.Close()
	cmds := []string{
		fmt.Sprintf(`CREATE TABLE %s
      (run_id TEXT PRIMARY KEY,
       mode TEXT, verdict TEXT,
       report_json TEXT,
       run_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP);`, VERIFICATION_RUNS_TABLE_NAME),
	}
	for _, cmd := range cmds {
		_, err = conn.Exec(cmd)
		if err != nil {
			return fmt.Errorf("error while initializing meta db with query-%s :%w", cmd, err)
		}
	}
	return nil
}

type MetaDB struct {
	db *sql.DB
}

func NewMetaDB(exportDir string) (*MetaDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s%s", GetMetaDBPath(exportDir), SQLITE_OPTIONS))
	if err != nil {
		return nil, fmt.Errorf("error while opening meta db :%w", err)
	}
	return &MetaDB{db: db}, nil
}

func (m *MetaDB) Close() error {
	return m.db.Close()
}

// VerificationRun is one row of the run history.
type VerificationRun struct {
	RunID   string
	Mode    string
	Verdict string
	Report  *verifier.VerificationReport
	RunAt   time.Time
}

func (m *MetaDB) RecordVerificationRun(runID string, report *verifier.VerificationReport) error {
	reportJson, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal verification report: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (run_id, mode, verdict, report_json) VALUES (?, ?, ?, ?);`,
		VERIFICATION_RUNS_TABLE_NAME)
	_, err = m.db.Exec(query, runID, report.Mode, report.Verdict, string(reportJson))
	if err != nil {
		return fmt.Errorf("record verification run %s: %w", runID, err)
	}
	return nil
}

func (m *MetaDB) GetVerificationRuns() ([]*VerificationRun, error) {
	query := fmt.Sprintf(`SELECT run_id, mode, verdict, report_json, run_at FROM %s ORDER BY run_at;`,
		VERIFICATION_RUNS_TABLE_NAME)
	rows, err := m.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query verification runs: %w", err)
	}
	defer rows.Close()

	var runs []*VerificationRun
	for rows.Next() {
		var run VerificationRun
		var reportJson string
		err = rows.Scan(&run.RunID, &run.Mode, &run.Verdict, &reportJson, &run.RunAt)
		if err != nil {
			return nil, fmt.Errorf("scan verification run: %w", err)
		}
		run.Report = &verifier.VerificationReport{}
		err = json.Unmarshal([]byte(reportJson), run.Report)
		if err != nil {
			return nil, fmt.Errorf("unmarshal verification report of run %s: %w", run.RunID, err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
