package api

import (
	"net/http"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"

	"github.com/oblivion-chain/oblivion/x/marketplace/keeper"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// view answers a query from the node's committed state.
func (s *Server) view(c *gin.Context, fn func(ctx sdk.Context, k *keeper.Keeper) (any, error)) {
	var out any
	err := s.node.View(func(ctx sdk.Context, k *keeper.Keeper) error {
		var err error
		out, err = fn(ctx, k)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetJob(c *gin.Context) {
	id, err := ParseJobID(c.Param("id"))
	if err != nil {
		writeError(c, invalidArgument(err))
		return
	}
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		return k.GetJob(ctx, id)
	})
}

func (s *Server) handleJobCount(c *gin.Context) {
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		return CountResponse{Count: k.GetJobCount(ctx)}, nil
	})
}

func (s *Server) handlePendingJobs(c *gin.Context) {
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		jobs, err := k.GetPendingJobs(ctx)
		return JobsResponse{Jobs: jobs, Total: len(jobs)}, err
	})
}

func (s *Server) handleCompletedModels(c *gin.Context) {
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		jobs, err := k.GetCompletedJobsWithModels(ctx)
		return JobsResponse{Jobs: jobs, Total: len(jobs)}, err
	})
}

// handleListJobs lists jobs, optionally filtered by status and requester
func (s *Server) handleListJobs(c *gin.Context) {
	q, err := parseJobQuery(c)
	if err != nil {
		writeError(c, invalidArgument(err))
		return
	}

	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		var (
			jobs []types.Job
			err  error
		)
		switch {
		case q.Requester != nil:
			jobs, err = k.GetJobsByRequester(ctx, q.Requester)
		case q.Status != nil:
			jobs, err = k.GetJobsByStatus(ctx, *q.Status)
		default:
			err = k.IterateJobs(ctx, func(job types.Job) (bool, error) {
				jobs = append(jobs, job)
				return false, nil
			})
		}
		if err != nil {
			return nil, err
		}
		filtered := jobs[:0]
		for _, job := range jobs {
			if q.Matches(job) {
				filtered = append(filtered, job)
			}
		}
		return paginate(filtered, q.Page), nil
	})
}

func paginate(jobs []types.Job, page PaginationParams) JobsResponse {
	total := len(jobs)
	if page.Offset >= total {
		return JobsResponse{Jobs: []types.Job{}, Total: total}
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return JobsResponse{Jobs: jobs[page.Offset:end], Total: total}
}

func (s *Server) handleJobExpired(c *gin.Context) {
	id, err := ParseJobID(c.Param("id"))
	if err != nil {
		writeError(c, invalidArgument(err))
		return
	}
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		expired, err := k.IsJobExpired(ctx, id)
		return ExpiredResponse{JobID: id, Expired: expired}, err
	})
}

func (s *Server) handleListWorkers(c *gin.Context) {
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		workers, err := k.GetAllWorkers(ctx)
		return WorkersResponse{Workers: workers}, err
	})
}

func (s *Server) handleActiveWorkers(c *gin.Context) {
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		workers, err := k.GetActiveWorkers(ctx)
		return WorkersResponse{Workers: workers}, err
	})
}

func (s *Server) handleWorkerCount(c *gin.Context) {
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		return CountResponse{Count: k.GetWorkerCount(ctx)}, nil
	})
}

func (s *Server) handleGetWorker(c *gin.Context) {
	addr, err := ParseAddress(c.Param("address"))
	if err != nil {
		writeError(c, invalidArgument(err))
		return
	}
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		return k.GetWorker(ctx, addr)
	})
}

func (s *Server) handleWorkerHistory(c *gin.Context) {
	addr, err := ParseAddress(c.Param("address"))
	if err != nil {
		writeError(c, invalidArgument(err))
		return
	}
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		ids, err := k.GetWorkerJobHistory(ctx, addr)
		return HistoryResponse{Worker: addr.String(), JobIDs: ids}, err
	})
}

func (s *Server) handleWorkerPriority(c *gin.Context) {
	addr, err := ParseAddress(c.Param("address"))
	if err != nil {
		writeError(c, invalidArgument(err))
		return
	}
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		priority, err := k.GetWorkerPriority(ctx, addr)
		return PriorityResponse{Worker: addr.String(), Priority: priority}, err
	})
}

func (s *Server) handleStats(c *gin.Context) {
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		return k.GetStats(ctx)
	})
}

func (s *Server) handleTimeout(c *gin.Context) {
	jobType, err := types.ParseJobType(c.Param("type"))
	if err != nil {
		writeError(c, invalidArgument(err))
		return
	}
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		timeout, err := k.GetTimeout(ctx, jobType)
		return TimeoutResponse{
			JobType: jobType.String(),
			Timeout: timeout.String(),
			Seconds: int64(timeout.Seconds()),
		}, err
	})
}

func (s *Server) handleOwner(c *gin.Context) {
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		owner, err := k.GetOwner(ctx)
		if err != nil {
			return nil, err
		}
		return OwnerResponse{Owner: owner.String(), Verifier: k.GetVerifierName(ctx)}, nil
	})
}

func (s *Server) handleParams(c *gin.Context) {
	s.view(c, func(ctx sdk.Context, k *keeper.Keeper) (any, error) {
		return k.GetParams(ctx)
	})
}
