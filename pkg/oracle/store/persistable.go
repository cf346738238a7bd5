package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/richard-senior/oracle/internal/logger"
)

// Persistable interface defines methods that persistent objects must implement
type Persistable interface {
	GetTableName() string
	GetPrimaryKey() map[string]any
	BeforeSave() error
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateTable creates a table (and its indexes) for the given persistable object using struct tags
func (s *Store) CreateTable(ctx context.Context, obj Persistable) error {
	tableName := obj.GetTableName()
	createSQL := s.generateCreateTableSQL(obj, tableName)
	logger.Debug("Creating table with SQL", createSQL)

	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	for _, query := range generateIndexSQL(obj, tableName) {
		logger.Debug("Creating index with SQL", query)
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			logger.Warn("Failed to create index", err)
		}
	}
	return nil
}

// generateCreateTableSQL generates CREATE TABLE SQL from struct tags
func (s *Store) generateCreateTableSQL(obj any, tableName string) string {
	objType := reflect.TypeOf(obj)
	if objType.Kind() == reflect.Ptr {
		objType = objType.Elem()
	}

	var columns []string
	var primaryKeys []string

	for i := 0; i < objType.NumField(); i++ {
		field := objType.Field(i)
		if !field.IsExported() {
			continue
		}
		dbType := field.Tag.Get("dbtype")
		if dbType == "" {
			continue
		}
		columnName := columnOf(field)
		if field.Tag.Get("primary") == "true" {
			primaryKeys = append(primaryKeys, columnName)
		}
		columns = append(columns, fmt.Sprintf("%s %s", columnName, s.dialect.columnType(dbType)))
	}

	if len(primaryKeys) > 0 {
		columns = append(columns, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primaryKeys, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName, strings.Join(columns, ", "))
}

// generateIndexSQL generates index creation SQL from struct tags
func generateIndexSQL(obj any, tableName string) []string {
	objType := reflect.TypeOf(obj)
	if objType.Kind() == reflect.Ptr {
		objType = objType.Elem()
	}

	var indexSQL []string
	for i := 0; i < objType.NumField(); i++ {
		field := objType.Field(i)
		if field.Tag.Get("index") == "" {
			continue
		}
		columnName := columnOf(field)
		indexName := fmt.Sprintf("idx_%s_%s", tableName, columnName)
		indexSQL = append(indexSQL, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", indexName, tableName, columnName))
	}
	return indexSQL
}

func columnOf(field reflect.StructField) string {
	if c := field.Tag.Get("column"); c != "" {
		return c
	}
	return strings.ToLower(field.Name)
}

// save persists the object (INSERT or UPDATE) through e, which may be a transaction
func (s *Store) save(ctx context.Context, e execer, obj Persistable) error {
	if err := obj.BeforeSave(); err != nil {
		return fmt.Errorf("before save hook failed: %w", err)
	}

	exists, err := s.exists(ctx, e, obj)
	if err != nil {
		return err
	}
	if exists {
		return s.update(ctx, e, obj)
	}
	return s.insert(ctx, e, obj)
}

func (s *Store) insert(ctx context.Context, e execer, obj Persistable) error {
	tableName := obj.GetTableName()
	columns, values := getInsertData(obj)
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = s.dialect.placeholder(i + 1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if _, err := e.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", tableName, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, e execer, obj Persistable) error {
	tableName := obj.GetTableName()
	columns, values := getUpdateData(obj)

	setPairs := make([]string, len(columns))
	for i, c := range columns {
		setPairs[i] = fmt.Sprintf("%s = %s", c, s.dialect.placeholder(i+1))
	}
	whereClause, whereValues := s.buildWhereClause(obj.GetPrimaryKey(), len(values)+1)
	values = append(values, whereValues...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", tableName, strings.Join(setPairs, ", "), whereClause)
	if _, err := e.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to update %s: %w", tableName, err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, e execer, obj Persistable) (bool, error) {
	tableName := obj.GetTableName()
	whereClause, values := s.buildWhereClause(obj.GetPrimaryKey(), 1)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", tableName, whereClause)

	var count int
	if err := e.QueryRowContext(ctx, query, values...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence in %s: %w", tableName, err)
	}
	return count > 0, nil
}

// getInsertData extracts column names and values for INSERT
func getInsertData(obj any) ([]string, []any) {
	return fieldValues(obj, true)
}

// getUpdateData extracts non-key column names and values for UPDATE
func getUpdateData(obj any) ([]string, []any) {
	return fieldValues(obj, false)
}

func fieldValues(obj any, withPrimary bool) ([]string, []any) {
	objValue := reflect.Indirect(reflect.ValueOf(obj))
	objType := objValue.Type()

	var columns []string
	var values []any
	for i := 0; i < objType.NumField(); i++ {
		field := objType.Field(i)
		if !field.IsExported() || field.Tag.Get("dbtype") == "" {
			continue
		}
		if !withPrimary && field.Tag.Get("primary") == "true" {
			continue
		}
		columns = append(columns, columnOf(field))
		values = append(values, objValue.Field(i).Interface())
	}
	return columns, values
}

// getSelectData extracts column names and scan destinations for SELECT
func getSelectData(obj any) ([]string, []any) {
	objValue := reflect.Indirect(reflect.ValueOf(obj))
	objType := objValue.Type()

	var columns []string
	var destinations []any
	for i := 0; i < objType.NumField(); i++ {
		field := objType.Field(i)
		if !field.IsExported() || field.Tag.Get("dbtype") == "" {
			continue
		}
		columns = append(columns, columnOf(field))
		destinations = append(destinations, objValue.Field(i).Addr().Interface())
	}
	return columns, destinations
}

// buildWhereClause builds a WHERE clause from a primary key map. Columns are
// sorted so the generated SQL is stable; numbering starts at first.
func (s *Store) buildWhereClause(primaryKey map[string]any, first int) (string, []any) {
	cols := make([]string, 0, len(primaryKey))
	for c := range primaryKey {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	conditions := make([]string, len(cols))
	values := make([]any, len(cols))
	for i, c := range cols {
		conditions[i] = fmt.Sprintf("%s = %s", c, s.dialect.placeholder(first+i))
		values[i] = primaryKey[c]
	}
	return strings.Join(conditions, " AND "), values
}

// findWhere runs SELECT over obj's columns with a custom tail (WHERE / ORDER BY)
// and returns freshly allocated objects of the same type
func (s *Store) findWhere(ctx context.Context, obj Persistable, tail string, args ...any) ([]any, error) {
	tableName := obj.GetTableName()
	columns, _ := getSelectData(obj)
	query := fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(columns, ", "), tableName, tail)
	logger.Debug("FindWhere SQL", query)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableName, err)
	}
	defer rows.Close()

	objType := reflect.TypeOf(obj).Elem()
	var results []any
	for rows.Next() {
		newObj := reflect.New(objType).Interface()
		_, destinations := getSelectData(newObj)
		if err := rows.Scan(destinations...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", tableName, err)
		}
		results = append(results, newObj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from %s: %w", tableName, err)
	}
	return results, nil
}

// bulkSave saves multiple objects in one transaction, optionally clearing the
// table first (the feature table is replaced wholesale on every run)
func (s *Store) bulkSave(ctx context.Context, table string, replace bool, objects []Persistable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	for _, obj := range objects {
		if err := s.save(ctx, tx, obj); err != nil {
			return fmt.Errorf("failed to save object: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
