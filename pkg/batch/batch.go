// Package batch splits prediction inputs into fixed-size batches.
package batch

// Cut 将 total 行数据切分成若干批次
// 返回值: 每个批次的结束 offset (最后一个必然等于 total)
// size <= 0 表示不切分，整体作为一个批次
func Cut(total, size int) []int {
	if total <= 0 {
		return nil
	}
	if size <= 0 || size >= total {
		return []int{total}
	}

	cutPoints := make([]int, 0, (total+size-1)/size)
	for end := size; ; end += size {
		// 尾部不足一个批次，直接收尾
		if end >= total {
			cutPoints = append(cutPoints, total)
			return cutPoints
		}
		cutPoints = append(cutPoints, end)
	}
}

// Each 按批次调用 fn，遇到第一个错误即停止
func Each[T any](items []T, size int, fn func(batch []T) error) error {
	start := 0
	for _, end := range Cut(len(items), size) {
		if err := fn(items[start:end]); err != nil {
			return err
		}
		start = end
	}
	return nil
}
