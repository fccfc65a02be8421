package database

import (
	"database/sql"
	"fmt"
	"log"

	"offline-gateway/internal/config"

	_ "github.com/go-sql-driver/mysql"
)

// 表名常量
const (
	TableEntries = "entries"
)

// SQL 建表语句常量
// 使用 InnoDB 引擎支持事务,utf8mb4 支持完整 Unicode 字符集
const (
	// createEntriesTableSQL 离线待同步记录表
	// id 单调递增且不可变更,status 建二级索引供同步通道按状态捞取
	createEntriesTableSQL = `
		CREATE TABLE IF NOT EXISTS entries (
			id BIGINT AUTO_INCREMENT PRIMARY KEY COMMENT '自增记录ID',
			text TEXT NOT NULL COMMENT '用户输入内容',
			created_at BIGINT NOT NULL COMMENT '创建时间戳(毫秒)',
			status VARCHAR(16) NOT NULL DEFAULT 'pending' COMMENT '同步状态',
			INDEX idx_status (status),
			INDEX idx_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
		COMMENT='离线待同步记录'
	`
)

// MySQLDB MySQL 数据库连接管理器
// 封装连接池和表初始化逻辑
type MySQLDB struct {
	*sql.DB
}

// NewMySQLDB 创建 MySQL 数据库连接
// 自动配置连接池参数并测试连接可用性
func NewMySQLDB(mysqlConfig config.MySQLConfig) (*MySQLDB, error) {
	database, err := sql.Open("mysql", mysqlConfig.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	configureConnectionPool(database, mysqlConfig)

	if err := testConnection(database); err != nil {
		database.Close()
		return nil, err
	}

	log.Printf("[MYSQL] 数据库连接成功")
	return &MySQLDB{DB: database}, nil
}

// configureConnectionPool 配置数据库连接池参数
func configureConnectionPool(database *sql.DB, mysqlConfig config.MySQLConfig) {
	database.SetMaxOpenConns(mysqlConfig.MaxOpenConns)
	database.SetMaxIdleConns(mysqlConfig.MaxIdleConns)
	database.SetConnMaxLifetime(mysqlConfig.ConnMaxLifetime)
}

// testConnection 测试数据库连接是否可用
func testConnection(database *sql.DB) error {
	if err := database.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// InitTables 初始化数据库表结构
// 幂等操作,多次执行不会产生副作用
func (database *MySQLDB) InitTables() error {
	if _, err := database.Exec(createEntriesTableSQL); err != nil {
		log.Printf("[MYSQL] 创建表 %s 失败: %v", TableEntries, err)
		return fmt.Errorf("failed to create table %s: %w", TableEntries, err)
	}

	log.Printf("[MYSQL] 数据库表初始化完成")
	return nil
}

// Close 关闭数据库连接
// 释放所有连接池资源
func (database *MySQLDB) Close() error {
	if err := database.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
