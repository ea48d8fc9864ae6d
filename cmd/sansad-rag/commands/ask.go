package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/sansad-rag/internal/core/ask"
)

// SearchAction は省庁内で類似する文書を検索するコマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	ministry := cmd.String("ministry")
	limit := cmd.Int("limit")
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))

	if query == "" {
		return errors.New("検索クエリを指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	results, err := appCtx.Container.DocumentStore.SearchByText(ctx, query, ministry, limit)
	if err != nil {
		return fmt.Errorf("検索に失敗: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("該当する文書はありません")
		return nil
	}
	return renderSearchResults(os.Stdout, results)
}

// AskAction は省庁の答弁記録に基づいて質問に回答するコマンドのアクション
// --ministry を省略した場合は登録済みの省庁から対話的に選択する
func AskAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	ministry := cmd.String("ministry")
	limit := cmd.Int("limit")
	showSources := cmd.Bool("show-sources")
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))

	if question == "" {
		return errors.New("質問を指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if ministry == "" {
		ministry, err = selectMinistry(appCtx.Container.DocumentStore.IndexedMinistries())
		if err != nil {
			return err
		}
	}

	result, err := appCtx.Container.AskService.Ask(ctx, ask.AskParams{
		Question: question,
		Ministry: ministry,
		Limit:    limit,
	})
	if err != nil {
		return fmt.Errorf("回答の生成に失敗: %w", err)
	}

	appCtx.Logger().Debug("回答を生成しました",
		"ministry", ministry,
		"outcome", result.Answer.Outcome.String(),
		"sources", len(result.Sources),
	)

	return renderAnswer(os.Stdout, result, showSources)
}

// LLMCheckAction は生成モデルへの接続を確認するコマンドのアクション
func LLMCheckAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	reply, err := appCtx.Container.AskService.CheckConnection(ctx)
	if err != nil {
		return fmt.Errorf("生成モデルに接続できません (provider=%s): %w", appCtx.Config.LLM.Provider, err)
	}

	fmt.Printf("provider: %s\nmodel:    %s\nreply:    %s\n",
		appCtx.Config.LLM.Provider, orDash(appCtx.Config.LLM.Model), strings.TrimSpace(reply))
	return nil
}
