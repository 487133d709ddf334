// =============================================================================
// workerpool.go - 固定サイズのワーカープール
// =============================================================================
//
// 固定数のワーカーがタスクキューから入力を取り出し、結果を完了順に
// 結果チャネルへ送ります。全タスクの報告が終わるとチャネルを閉じます。
//
// 【ポイント】
//   - 結果の順序は完了順（投入順ではない）。元の位置は Result.Index で分かる
//   - 各タスクは独立しており、ワーカー間で共有する可変状態はない
//   - contextが終了した後に取り出された入力は処理せず ctx.Err() を報告する
//
// =============================================================================
package pipeline

import (
	"context"
	"sync"
)

// Result はタスク1件の結果
type Result[T any] struct {
	Index int // 入力スライス内の位置
	Value T
	Err   error
}

// runPool は inputs をworkers並列でfnに通し、完了順に結果を流す
//
// 返されるチャネルは len(inputs) 件の結果を送った後に閉じられる。
// 呼び出し側はチャネルを最後まで読み切ること。
func runPool[In, Out any](ctx context.Context, workers int, inputs []In, fn func(context.Context, In) (Out, error)) <-chan Result[Out] {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	tasks := make(chan int)
	results := make(chan Result[Out], len(inputs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				if err := ctx.Err(); err != nil {
					results <- Result[Out]{Index: idx, Err: err}
					continue
				}
				out, err := fn(ctx, inputs[idx])
				results <- Result[Out]{Index: idx, Value: out, Err: err}
			}
		}()
	}

	go func() {
		for i := range inputs {
			tasks <- i
		}
		close(tasks)
		wg.Wait()
		close(results)
	}()

	return results
}

// collectOrdered はチャネルの結果を入力順のスライスに並べ直す
func collectOrdered[T any](n int, ch <-chan Result[T]) []Result[T] {
	out := make([]Result[T], n)
	for r := range ch {
		out[r.Index] = r
	}
	return out
}
