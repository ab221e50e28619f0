package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/repository"
)

func TestConditionRepository_LowStock(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewConditionRepository(db)
		ctx := context.Background()

		flour, err := repo.InsertStockItem(ctx, domain.StockLevel{Name: "Flour", Quantity: 5, ReorderLevel: 10, Unit: "kg"})
		require.NoError(t, err)
		_, err = repo.InsertStockItem(ctx, domain.StockLevel{Name: "Sugar", Quantity: 20, ReorderLevel: 10, Unit: "kg"})
		require.NoError(t, err)
		exact, err := repo.InsertStockItem(ctx, domain.StockLevel{Name: "Salt", Quantity: 10, ReorderLevel: 10, Unit: "kg"})
		require.NoError(t, err)

		low, err := repo.LowStock(ctx)
		require.NoError(t, err)
		require.Len(t, low, 2)
		require.Equal(t, flour, low[0].ItemID)
		require.Equal(t, "Flour", low[0].Name)
		require.Equal(t, exact, low[1].ItemID, "at the reorder level counts as low")

		require.NoError(t, repo.SetStockQuantity(ctx, flour, 12))
		low, err = repo.LowStock(ctx)
		require.NoError(t, err)
		require.Len(t, low, 1)

		item, err := repo.StockLevel(ctx, flour)
		require.NoError(t, err)
		require.Equal(t, float64(12), item.Quantity)

		require.ErrorIs(t, repo.SetStockQuantity(ctx, 9999, 1), repository.ErrNotFound)
		_, err = repo.StockLevel(ctx, 9999)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestConditionRepository_Batches(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewConditionRepository(db)
		ctx := context.Background()

		id, err := repo.InsertBatch(ctx, domain.ExpiryBatch{
			ItemName: "Milk", Quantity: 4, ExpiryDate: baseTime.AddDate(0, 0, 2), AlertDaysBefore: 3,
		})
		require.NoError(t, err)
		_, err = repo.InsertBatch(ctx, domain.ExpiryBatch{
			ItemName: "Cream", Quantity: 0, ExpiryDate: baseTime, AlertDaysBefore: 3,
		})
		require.NoError(t, err)

		batches, err := repo.StockedBatches(ctx)
		require.NoError(t, err)
		require.Len(t, batches, 1, "empty batches are skipped")
		require.Equal(t, id, batches[0].BatchID)
		require.True(t, batches[0].ExpiryDate.Equal(baseTime.AddDate(0, 0, 2)))
		require.False(t, batches[0].IsExpired)

		changed, err := repo.MarkBatchExpired(ctx, id)
		require.NoError(t, err)
		require.True(t, changed)
		changed, err = repo.MarkBatchExpired(ctx, id)
		require.NoError(t, err)
		require.False(t, changed)

		batches, err = repo.StockedBatches(ctx)
		require.NoError(t, err)
		require.True(t, batches[0].IsExpired)
	})
}

func TestConditionRepository_StatusFiltered(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewConditionRepository(db)
		ctx := context.Background()

		task, err := repo.InsertMaintenanceTask(ctx, domain.MaintenanceTask{
			Title: "Descale oven", Equipment: "Oven 2", Status: domain.MaintenanceOpen, ScheduledFor: baseTime,
		})
		require.NoError(t, err)
		_, err = repo.InsertMaintenanceTask(ctx, domain.MaintenanceTask{
			Title: "Fryer oil", Status: domain.MaintenanceDone, ScheduledFor: baseTime,
		})
		require.NoError(t, err)

		audit, err := repo.InsertAudit(ctx, domain.QualityAudit{
			Title: "Cold chain", Status: domain.AuditInProgress, FollowUpDate: baseTime,
		})
		require.NoError(t, err)

		incident, err := repo.InsertIncident(ctx, domain.SafetyIncident{
			Title: "Slip", Severity: domain.IncidentSeverityMajor, Status: domain.IncidentInvestigating, ReportedAt: baseTime,
		})
		require.NoError(t, err)

		order, err := repo.InsertOrder(ctx, domain.PendingOrder{
			OrderNumber: "POS-0001", Total: 12.5, Status: domain.OrderPending, CreatedAt: baseTime,
		})
		require.NoError(t, err)

		tasks, err := repo.OpenMaintenance(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.Equal(t, task, tasks[0].TaskID)
		require.Equal(t, "Oven 2", tasks[0].Equipment)

		audits, err := repo.OpenAudits(ctx)
		require.NoError(t, err)
		require.Len(t, audits, 1)
		require.Equal(t, audit, audits[0].AuditID)

		incidents, err := repo.ActiveIncidents(ctx)
		require.NoError(t, err)
		require.Len(t, incidents, 1)
		require.Equal(t, domain.SeverityCritical, incidents[0].AlertSeverity())

		orders, err := repo.PendingOrders(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		require.Equal(t, "POS-0001", orders[0].OrderNumber)
		require.True(t, orders[0].CreatedAt.Equal(baseTime))

		require.NoError(t, repo.SetStatus(ctx, repository.TableMaintenanceTasks, task, domain.MaintenanceDone))
		require.NoError(t, repo.SetStatus(ctx, repository.TableQualityAudits, audit, domain.AuditClosed))
		require.NoError(t, repo.SetStatus(ctx, repository.TableSafetyIncidents, incident, domain.IncidentClosed))
		require.NoError(t, repo.SetStatus(ctx, repository.TablePOSOrders, order, domain.OrderCompleted))

		tasks, err = repo.OpenMaintenance(ctx)
		require.NoError(t, err)
		require.Empty(t, tasks)
		audits, err = repo.OpenAudits(ctx)
		require.NoError(t, err)
		require.Empty(t, audits)
		incidents, err = repo.ActiveIncidents(ctx)
		require.NoError(t, err)
		require.Empty(t, incidents)
		orders, err = repo.PendingOrders(ctx)
		require.NoError(t, err)
		require.Empty(t, orders)

		require.Error(t, repo.SetStatus(ctx, "alerts", 1, "x"))
		require.ErrorIs(t, repo.SetStatus(ctx, repository.TablePOSOrders, 9999, domain.OrderCompleted), repository.ErrNotFound)

		require.NoError(t, repo.SetBatchExpiry(ctx, 1, baseTime.Add(time.Hour)))
	})
}
