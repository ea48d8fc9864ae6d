package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// errAborted は確認プロンプトで拒否された場合のエラー
var errAborted = errors.New("操作を中止しました")

// confirm は破壊的な操作の前に y/N で確認する
// assumeYes が true の場合は確認を省略する
func confirm(label string, assumeYes bool) error {
	if assumeYes {
		return nil
	}

	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return errAborted
		}
		return fmt.Errorf("確認プロンプトの実行に失敗: %w", err)
	}
	return nil
}

// selectMinistry は省庁一覧から対話的に1件選ばせる
func selectMinistry(names []string) (string, error) {
	if len(names) == 0 {
		return "", errors.New("選択できる省庁がありません")
	}

	prompt := promptui.Select{
		Label:    "省庁を選択 (/ で検索)",
		Items:    names,
		Size:     10,
		Searcher: ministrySearcher(names),
	}
	_, name, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return "", errAborted
		}
		return "", fmt.Errorf("省庁の選択に失敗: %w", err)
	}
	return name, nil
}

// ministrySearcher は大文字小文字を区別しない部分一致で絞り込む
func ministrySearcher(names []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		if index < 0 || index >= len(names) {
			return false
		}
		name := strings.ToLower(names[index])
		for _, word := range strings.Fields(strings.ToLower(input)) {
			if !strings.Contains(name, word) {
				return false
			}
		}
		return true
	}
}
