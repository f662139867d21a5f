package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed chunks.sql
var chunksSQL string

//go:embed documents.sql
var documentsSQL string

//go:embed jobs.sql
var jobsSQL string

// Function lists for verification
var ChunksFunctions = []string{
	"init_chunks",
	"upsert_chunk",
	"select_chunk",
	"select_chunks",
	"select_similar_chunks",
	"select_collections",
	"existing_collections",
}

var DocumentsFunctions = []string{
	"init_documents",
	"insert_document",
	"select_document",
	"select_all_documents",
	"delete_document",
}

var JobsFunctions = []string{
	"init_jobs",
	"enqueue_job",
	"claim_pending_jobs",
	"mark_job_succeeded",
	"mark_job_failed",
	"quarantine_job",
	"release_job",
	"release_quarantined_job",
	"release_stale_jobs",
	"count_pending_jobs",
	"select_jobs",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadChunksSql loads chunk-related SQL functions
func LoadChunksSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, ChunksFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing chunks functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(chunksSQL)
	if err != nil {
		return fmt.Errorf("error executing chunks SQL: %w", err)
	}

	return nil
}

// LoadDocumentsSql loads document-related SQL functions
func LoadDocumentsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, DocumentsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing documents functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(documentsSQL)
	if err != nil {
		return fmt.Errorf("error executing documents SQL: %w", err)
	}

	return nil
}

// LoadJobsSql loads dead-letter job SQL functions
func LoadJobsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, JobsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing jobs functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(jobsSQL)
	if err != nil {
		return fmt.Errorf("error executing jobs SQL: %w", err)
	}

	return nil
}

// checkFunctions checks if all given functions exist in the database
func checkFunctions(db *sql.DB, functions []string) (bool, error) {
	for _, function := range functions {
		var exists bool
		err := db.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM pg_proc WHERE proname = $1)`,
			function,
		).Scan(&exists)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}
