package worker

import (
	"context"
	"log"
	"time"

	"chara_shop/pkg/cache"
)

// InvalidationTask 一次缓存失效任务
// 下单成功后，购物车/积分/推荐相关的派生缓存都要清掉
type InvalidationTask struct {
	Keys     []string // 精确键
	Patterns []string // glob 模式
	Retry    int      // 重试次数
}

// InvalidationPool 缓存失效 Worker Pool
// 失效是尽力而为：失败只影响缓存新鲜度，不影响已提交的订单。
// 直连远程缓存而不是降级门面，门面会吞掉错误导致重试永远不触发；
// 本地副本顺手清理，失败不计入任务失败（短 TTL 会自愈）
type InvalidationPool struct {
	TaskQueue  chan InvalidationTask
	RetryQueue chan InvalidationTask
	Remote     cache.CacheService
	Local      cache.CacheService
	WorkerNum  int
	MaxRetry   int
}

func NewInvalidationPool(remote, local cache.CacheService, workerNum int, bufferSize int) *InvalidationPool {
	return &InvalidationPool{
		TaskQueue:  make(chan InvalidationTask, bufferSize),
		RetryQueue: make(chan InvalidationTask, bufferSize/2),
		Remote:     remote,
		Local:      local,
		WorkerNum:  workerNum,
		MaxRetry:   3,
	}
}

func (p *InvalidationPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		go p.worker(i)
	}
	go p.retryWorker()
	log.Printf("Cache invalidation pool started with %d workers", p.WorkerNum)
}

func (p *InvalidationPool) worker(id int) {
	for task := range p.TaskQueue {
		if err := p.processTask(task); err != nil {
			log.Printf("[Worker %d] Failed to invalidate cache (keys: %v, patterns: %v): %v",
				id, task.Keys, task.Patterns, err)

			// 如果未达到最大重试次数，加入重试队列
			if task.Retry < p.MaxRetry {
				task.Retry++
				select {
				case p.RetryQueue <- task:
				default:
					log.Printf("[Worker %d] Retry queue full, task dropped: %+v", id, task)
				}
			} else {
				log.Printf("[Worker %d] Task exceeded max retries, dropped: %+v", id, task)
			}
		}
	}
}

func (p *InvalidationPool) retryWorker() {
	for task := range p.RetryQueue {
		// 延迟重试，避免立即重试
		time.Sleep(time.Duration(task.Retry) * time.Second)

		select {
		case p.TaskQueue <- task:
		default:
			log.Printf("[RetryWorker] Main queue full, task dropped: %+v", task)
		}
	}
}

func (p *InvalidationPool) processTask(task InvalidationTask) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	for _, key := range task.Keys {
		if p.Local != nil {
			_ = p.Local.Delete(ctx, key)
		}
		if err := p.Remote.Delete(ctx, key); err != nil {
			return err
		}
	}
	for _, pattern := range task.Patterns {
		if p.Local != nil {
			_ = p.Local.DeletePattern(ctx, pattern)
		}
		if err := p.Remote.DeletePattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}

// AddTask 任务入队，队列满时丢弃 (缓存过期兜底)
func (p *InvalidationPool) AddTask(task InvalidationTask) {
	select {
	case p.TaskQueue <- task:
	default:
		log.Printf("Invalidation pool queue full, dropping task: %+v", task)
	}
}
