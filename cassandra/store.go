package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/objectrun/oms"
)

type store struct{}

// NewStore returns a Store backed by the package's global Connection.
// OpenConnection must have been called beforehand.
func NewStore() oms.Store {
	return &store{}
}

func (s *store) Get(ctx context.Context, id oms.Identity, index int) ([]byte, bool, error) {
	if connection == nil {
		return nil, false, storeError(fmt.Errorf("Cassandra connection is closed, 'call OpenConnection(config) to open it"))
	}
	selectStatement := fmt.Sprintf("SELECT fields[?] FROM %s.object_state WHERE cls = ? AND pid = ? AND oid = ?;", connection.Config.Keyspace)
	qry := connection.Session.Query(selectStatement, index, id.ClassID, id.PartitionID, id.ObjectID).WithContext(ctx)
	if connection.Config.ConsistencyBook.StateGet > gocql.Any {
		qry.Consistency(connection.Config.ConsistencyBook.StateGet)
	}

	var data []byte
	if err := qry.Scan(&data); err != nil {
		if err == gocql.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, storeError(err)
	}
	// A row without this map entry scans as a nil blob.
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *store) GetAll(ctx context.Context, id oms.Identity) (map[int][]byte, bool, error) {
	if connection == nil {
		return nil, false, storeError(fmt.Errorf("Cassandra connection is closed, 'call OpenConnection(config) to open it"))
	}
	selectStatement := fmt.Sprintf("SELECT fields FROM %s.object_state WHERE cls = ? AND pid = ? AND oid = ?;", connection.Config.Keyspace)
	qry := connection.Session.Query(selectStatement, id.ClassID, id.PartitionID, id.ObjectID).WithContext(ctx)
	if connection.Config.ConsistencyBook.StateGetAll > gocql.Any {
		qry.Consistency(connection.Config.ConsistencyBook.StateGetAll)
	}

	entries := make(map[int][]byte)
	if err := qry.Scan(&entries); err != nil {
		if err == gocql.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, storeError(err)
	}
	return entries, true, nil
}

func (s *store) SetAll(ctx context.Context, id oms.Identity, entries map[int][]byte) error {
	if connection == nil {
		return storeError(fmt.Errorf("Cassandra connection is closed, 'call OpenConnection(config) to open it"))
	}
	if len(entries) == 0 {
		return nil
	}
	// Map append merges the written entries into the existing row, or creates
	// the row when it does not exist.
	updateStatement := fmt.Sprintf("UPDATE %s.object_state SET fields = fields + ? WHERE cls = ? AND pid = ? AND oid = ?;", connection.Config.Keyspace)
	qry := connection.Session.Query(updateStatement, entries, id.ClassID, id.PartitionID, id.ObjectID).WithContext(ctx)
	if connection.Config.ConsistencyBook.StateSet > gocql.Any {
		qry.Consistency(connection.Config.ConsistencyBook.StateSet)
	}

	if err := qry.Exec(); err != nil {
		return storeError(err)
	}
	return nil
}

func (s *store) Delete(ctx context.Context, id oms.Identity) error {
	if connection == nil {
		return storeError(fmt.Errorf("Cassandra connection is closed, 'call OpenConnection(config) to open it"))
	}
	deleteStatement := fmt.Sprintf("DELETE FROM %s.object_state WHERE cls = ? AND pid = ? AND oid = ?;", connection.Config.Keyspace)
	qry := connection.Session.Query(deleteStatement, id.ClassID, id.PartitionID, id.ObjectID).WithContext(ctx)
	if connection.Config.ConsistencyBook.StateRemove > gocql.Any {
		qry.Consistency(connection.Config.ConsistencyBook.StateRemove)
	}

	if err := qry.Exec(); err != nil {
		return storeError(err)
	}
	return nil
}

func storeError(err error) error {
	return oms.Error{
		Code: oms.StoreFailure,
		Err:  err,
	}
}
