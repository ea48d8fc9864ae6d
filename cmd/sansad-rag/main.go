package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/sansad-rag/cmd/sansad-rag/commands"
	"github.com/jinford/sansad-rag/internal/core/ask"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "sansad-rag",
		Usage: "Lok Sabha の質問答弁記録を省庁ごとに検索・回答する RAG システム",
		Commands: []*cli.Command{
			{
				Name:  "ministry",
				Usage: "省庁管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "登録済みの省庁と文書数を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.BoolFlag{
								Name:  "all",
								Usage: "未登録を含む全省庁を表示",
							},
						},
						Action: commands.MinistryListAction,
					},
					{
						Name:  "count",
						Usage: "省庁の文書数を表示",
						Flags: []cli.Flag{
							envFlag(),
							ministryFlag(true),
						},
						Action: commands.MinistryCountAction,
					},
					{
						Name:  "clear",
						Usage: "省庁の文書をすべて削除",
						Flags: []cli.Flag{
							envFlag(),
							ministryFlag(true),
							yesFlag(),
						},
						Action: commands.MinistryClearAction,
					},
				},
			},
			{
				Name:  "ingest",
				Usage: "取り込みコマンド",
				Commands: []*cli.Command{
					{
						Name:  "sansad",
						Usage: "sansad.in から答弁PDFを取得して登録",
						Flags: []cli.Flag{
							envFlag(),
							ministryFlag(false),
							&cli.IntFlag{
								Name:  "code",
								Usage: "sansad.in の省庁コード",
							},
						},
						Action: commands.IngestSansadAction,
					},
					{
						Name:  "stored",
						Usage: "保存済みの原本PDFを再処理して登録",
						Flags: []cli.Flag{
							envFlag(),
							ministryFlag(true),
							&cli.BoolFlag{
								Name:  "force",
								Usage: "登録済みの原本も再処理する",
							},
						},
						Action: commands.IngestStoredAction,
					},
				},
			},
			{
				Name:  "monitor",
				Usage: "原本一覧の更新監視コマンド",
				Commands: []*cli.Command{
					{
						Name:  "check",
						Usage: "原本一覧の変化を確認し、変化した省庁を取り込む",
						Flags: []cli.Flag{
							envFlag(),
							ministryFlag(false),
						},
						Action: commands.MonitorCheckAction,
					},
					{
						Name:  "run",
						Usage: "更新監視をスケジュール実行",
						Flags: []cli.Flag{
							envFlag(),
							ministryFlag(false),
							&cli.StringFlag{
								Name:  "schedule",
								Usage: "cron 形式のスケジュール（省略時は MONITOR_SCHEDULE）",
							},
							&cli.BoolFlag{
								Name:  "now",
								Usage: "起動直後に1回実行する",
							},
						},
						Action: commands.MonitorRunAction,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "省庁内で類似する文書を検索",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					envFlag(),
					ministryFlag(true),
					limitFlag(),
				},
				Action: commands.SearchAction,
			},
			{
				Name:      "ask",
				Usage:     "答弁記録に基づいて質問に回答",
				ArgsUsage: "QUESTION",
				Flags: []cli.Flag{
					envFlag(),
					ministryFlag(false),
					limitFlag(),
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照した文書を表示",
					},
				},
				Action: commands.AskAction,
			},
			{
				Name:  "llm",
				Usage: "生成モデル関連コマンド",
				Commands: []*cli.Command{
					{
						Name:   "check",
						Usage:  "生成モデルへの接続を確認",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.LLMCheckAction,
					},
				},
			},
			{
				Name:  "db",
				Usage: "データベース管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "migrate",
						Usage:  "スキーマのマイグレーションを適用",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.DBMigrateAction,
					},
					{
						Name:   "health",
						Usage:  "接続状態と文書数を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.DBHealthAction,
					},
					{
						Name:  "clear-all",
						Usage: "すべての文書を削除",
						Flags: []cli.Flag{
							envFlag(),
							yesFlag(),
						},
						Action: commands.DBClearAllAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func ministryFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "ministry",
		Aliases:  []string{"m"},
		Usage:    "省庁名 (例: \"MINISTRY OF FINANCE\")",
		Required: required,
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "limit",
		Usage: "検索する文書数",
		Value: ask.DefaultSearchLimit,
	}
}

func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "確認を省略する",
	}
}
