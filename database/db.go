/*
Copyright 2024 Blnk Finance Authors.

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

package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/cache"
	_ "github.com/go-sql-driver/mysql"
	redis_db "github.com/blnkfinance/tally/internal/redis-db"
	"github.com/sirupsen/logrus"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
// The file cache is attached when a redis address is configured; otherwise only the local tier is used.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: newFileCache(configuration)}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ConnectDB opens a pooled MySQL connection and checks it once.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dns)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, apierror.CodeDatabaseConnect,
			"could not open the database", err.Error())
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		logrus.Errorf("database connection error ❌: %v", err)
		_ = db.Close()
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, apierror.CodeDatabaseConnect,
			"could not connect to the database", err.Error())
	}
	return db, nil
}

// Ping checks that the database still answers.
func (d Datasource) Ping(ctx context.Context) error {
	return d.Conn.PingContext(ctx)
}

func newFileCache(configuration *config.Configuration) cache.Cache {
	if configuration.Redis.Dns == "" {
		return cache.NewCache(nil)
	}
	client, err := redis_db.NewRedisClient(configuration.Redis.Dns)
	if err != nil {
		logrus.Warnf("redis unavailable, file cache stays local: %v", err)
		return cache.NewCache(nil)
	}
	return cache.NewCache(client.Client())
}
