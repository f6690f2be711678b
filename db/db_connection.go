package db

import (
	"context"
	"fmt"

	"github.com/callummance/marshal/guildmodels"
	"github.com/sirupsen/logrus"
	rethink "gopkg.in/gorethink/gorethink.v3"
)

const rethinkNameDefault string = "marshal"
const baseDbPoolConnections int = 2
const maxDbPoolConnections int = 20
const policiesTable string = "policies"

//RethinkBackend stores guild policies as documents in a rethinkdb table, keyed on guild ID
type RethinkBackend struct {
	session *rethink.Session
}

//InitRethink creates a new connection pool for the rethinkdb instance at the given address
func InitRethink(addr, dbName string) (*RethinkBackend, error) {
	if addr == "" {
		return nil, fmt.Errorf("no rethinkdb address was provided")
	}
	if dbName == "" {
		logrus.Warnf("DB name was not provided, falling back to default `%v`", rethinkNameDefault)
		dbName = rethinkNameDefault
	}
	session, err := rethink.Connect(rethink.ConnectOpts{
		Address:    addr,
		Database:   dbName,
		InitialCap: baseDbPoolConnections,
		MaxOpen:    maxDbPoolConnections,
	})
	if err != nil {
		logrus.Errorf("Failed to create connection to rethinkdb instance at address %v because %v.", addr, err)
		return nil, fmt.Errorf("failed to create connection to rethinkdb instance at address %v because %v", addr, err)
	}

	res := RethinkBackend{
		session: session,
	}
	res.createDatabase(dbName)
	res.createTables()
	return &res, nil
}

//LoadPolicies reads every document in the policies table
func (db *RethinkBackend) LoadPolicies(_ context.Context) ([]*guildmodels.GuildPolicy, error) {
	res, err := rethink.Table(policiesTable).Run(db.session)
	if err != nil {
		logrus.Errorf("Failed to query database for policies because: %v.", err)
		return nil, fmt.Errorf("failed to query database for policies because: %v", err)
	}
	defer res.Close()

	var rows []guildmodels.GuildPolicy
	if err := res.All(&rows); err != nil {
		logrus.Errorf("Failed to read policies from database because: %v.", err)
		return nil, fmt.Errorf("failed to read policies from database because: %v", err)
	}
	policies := make([]*guildmodels.GuildPolicy, len(rows))
	for i := range rows {
		policies[i] = &rows[i]
	}
	return policies, nil
}

//SavePolicy replaces the stored document for the policy's guild. A single document replace is atomic in rethinkdb.
func (db *RethinkBackend) SavePolicy(_ context.Context, policy *guildmodels.GuildPolicy) error {
	resp, err := rethink.Table(policiesTable).Insert(policy, rethink.InsertOpts{
		Conflict: "replace",
	}).RunWrite(db.session)
	if err != nil {
		logrus.Warnf("Encountered error writing policy for guild %v to DB: %v", policy.GuildID, err)
		return err
	} else if resp.Errors > 0 {
		err := fmt.Errorf("%v", resp.FirstError)
		logrus.Warnf("Encountered error writing policy for guild %v to DB: %v", policy.GuildID, err)
		return err
	}
	return nil
}

//Close cleanly terminates the database connection
func (db *RethinkBackend) Close() error {
	logrus.Info("Terminating DB connection...")
	return db.session.Close()
}

func (db *RethinkBackend) createTables() {
	_, err := rethink.TableCreate(policiesTable, rethink.TableCreateOpts{
		PrimaryKey: "id",
	}).RunWrite(db.session)
	if err != nil {
		logrus.Warnf("Failed to create policies table due to error %v", err)
	}
	_, err = rethink.Table(policiesTable).Wait(rethink.WaitOpts{
		WaitFor: "ready_for_writes",
	}).RunWrite(db.session)
	if err != nil {
		logrus.Warnf("Failed waiting for policies table due to error %v", err)
	}
}

func (db *RethinkBackend) createDatabase(dbName string) {
	_, err := rethink.DBCreate(dbName).RunWrite(db.session)
	if err != nil {
		logrus.Warnf("Failed to create %v DB due to error %v", dbName, err)
	}
}
