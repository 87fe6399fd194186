// 从本地 CSV 批量导入题目
//
// 用于首次部署或离线整理题库后的批量录入，逐行独立入库，失败行会打印原因。
//
// 用法: go run scripts/import_questions.go -file questions.csv

package main

import (
	"context"
	"flag"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/service"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/logger"
	"log"
	"os"
)

func main() {
	file := flag.String("file", "", "CSV 文件路径")
	flag.Parse()
	if *file == "" {
		log.Fatal("缺少 -file 参数")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Sync()

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, true)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("无法打开文件: %v", err)
	}
	defer f.Close()

	pool := service.NewQuestionPoolService(
		repository.NewQuestionRepository(db),
		repository.NewCatalogRepository(db),
		nil,
		service.NewPolicy(nil),
	)

	report, err := pool.ImportCSV(context.Background(), service.Caller{Role: model.Admin}, f)
	if err != nil {
		log.Fatalf("导入失败: %v", err)
	}

	for _, rowErr := range report.Errors {
		log.Printf("第 %d 行: %s", rowErr.Line, rowErr.Message)
	}
	log.Printf("完成！成功导入 %d 道题，失败 %d 行", report.Imported, len(report.Errors))
}
