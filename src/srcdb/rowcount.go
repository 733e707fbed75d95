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
package srcdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// RowCount fetches the authoritative row count of one source table, the
// reference the event-set verifier compares the capture window against. The
// caller quiesces the workload generator first; counting a moving table
// produces a meaningless reference.
func RowCount(ctx context.Context, dsn string, tableName string) (int64, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return 0, fmt.Errorf("connect to source database: %w", err)
	}
	defer conn.Close(ctx)

	parts := strings.Split(tableName, ".")
	query := fmt.Sprintf("SELECT count(*) FROM %s", pgx.Identifier(parts).Sanitize())
	log.Infof("fetching reference count: %s", query)

	var count int64
	err = conn.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", tableName, err)
	}
	return count, nil
}
