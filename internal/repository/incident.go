package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/shenikar/emergency_response_system/internal/service"
)

const incidentColumns = `
	id,
	title,
	description,
	type,
	status,
	priority,
	ST_X(location::geometry) AS longitude,
	ST_Y(location::geometry) AS latitude,
	address,
	reported_by,
	reporter_email,
	assigned_to,
	media,
	updates,
	resolved_at,
	version,
	created_at,
	updated_at`

type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client, cacheTTL time.Duration) service.IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

// incidentDocs - JSONB-поля инцидента в сериализованном виде
type incidentDocs struct {
	address []byte
	media   []byte
	updates []byte
}

func encodeDocs(incident *models.Incident) (incidentDocs, error) {
	var docs incidentDocs
	var err error

	if incident.Address != nil {
		if docs.address, err = json.Marshal(incident.Address); err != nil {
			return docs, fmt.Errorf("failed to marshal address: %w", err)
		}
	}

	media := incident.Media
	if media == nil {
		media = []models.MediaAttachment{}
	}
	if docs.media, err = json.Marshal(media); err != nil {
		return docs, fmt.Errorf("failed to marshal media: %w", err)
	}

	updates := incident.Updates
	if updates == nil {
		updates = []models.IncidentUpdate{}
	}
	if docs.updates, err = json.Marshal(updates); err != nil {
		return docs, fmt.Errorf("failed to marshal updates: %w", err)
	}
	return docs, nil
}

func assignedOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

// scanIncident читает строку, выбранную с колонками incidentColumns
func scanIncident(row pgx.Row, extra ...any) (*models.Incident, error) {
	incident := &models.Incident{}
	var address, media, updates []byte

	dest := []any{
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Type,
		&incident.Status,
		&incident.Priority,
		&incident.Location.Longitude,
		&incident.Location.Latitude,
		&address,
		&incident.ReportedBy,
		&incident.ReporterEmail,
		&incident.AssignedTo,
		&media,
		&updates,
		&incident.ResolvedAt,
		&incident.Version,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if len(address) > 0 {
		incident.Address = &models.Address{}
		if err := json.Unmarshal(address, incident.Address); err != nil {
			return nil, fmt.Errorf("failed to unmarshal address: %w", err)
		}
	}
	if err := json.Unmarshal(media, &incident.Media); err != nil {
		return nil, fmt.Errorf("failed to unmarshal media: %w", err)
	}
	if err := json.Unmarshal(updates, &incident.Updates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
	}
	incident.AssignedTo = assignedOrEmpty(incident.AssignedTo)
	return incident, nil
}

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	docs, err := encodeDocs(incident)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO incidents (
			title, description, type, status, priority, location, address,
			reported_by, reporter_email, assigned_to, media, updates
		)
		VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, $8, $9, $10, $11, $12, $13)
		RETURNING id, version, created_at, updated_at;
	`
	err = r.db.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Type,
		incident.Status,
		incident.Priority,
		incident.Location.Longitude,
		incident.Location.Latitude,
		docs.address,
		incident.ReportedBy,
		incident.ReporterEmail,
		assignedOrEmpty(incident.AssignedTo),
		docs.media,
		docs.updates,
	).Scan(&incident.ID, &incident.Version, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1;`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// Update сохраняет инцидент при совпадении версии и увеличивает ее
func (r *IncidentRepository) Update(ctx context.Context, incident *models.Incident) error {
	docs, err := encodeDocs(incident)
	if err != nil {
		return err
	}

	query := `
		UPDATE incidents SET
			title = $1,
			description = $2,
			type = $3,
			status = $4,
			priority = $5,
			location = ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography,
			address = $8,
			assigned_to = $9,
			media = $10,
			updates = $11,
			resolved_at = $12,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $13 AND version = $14
		RETURNING version, updated_at;
	`
	err = r.db.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Type,
		incident.Status,
		incident.Priority,
		incident.Location.Longitude,
		incident.Location.Latitude,
		docs.address,
		assignedOrEmpty(incident.AssignedTo),
		docs.media,
		docs.updates,
		incident.ResolvedAt,
		incident.ID,
		incident.Version,
	).Scan(&incident.Version, &incident.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to update incident: %w", err)
	}

	// Строка не обновлена: инцидента нет или версия устарела
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id = $1);`, incident.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check incident existence: %w", err)
	}
	if !exists {
		return service.ErrIncidentNotFound
	}
	return service.ErrConflict
}

// List возвращает страницу инцидентов и общее количество по фильтру
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter, visibility models.Visibility) ([]*models.Incident, int, error) {
	w := buildIncidentWhere(filter, visibility)

	var total int
	countQuery := `SELECT COUNT(*) FROM incidents` + w.clause() + `;`
	if err := r.db.QueryRow(ctx, countQuery, w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count incidents: %w", err)
	}

	// рассчитываем смещение
	offset := (filter.Page - 1) * filter.Limit
	limitArg := w.arg(filter.Limit)
	offsetArg := w.arg(offset)

	query := `SELECT ` + incidentColumns + ` FROM incidents` + w.clause() +
		` ORDER BY created_at DESC LIMIT ` + limitArg + ` OFFSET ` + offsetArg + `;`

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, total, nil
}

// Search - полнотекстовый поиск, результаты упорядочены по релевантности
func (r *IncidentRepository) Search(ctx context.Context, q string, visibility models.Visibility, limit int) ([]*models.Incident, error) {
	w := &whereBuilder{}
	queryArg := w.arg(q)
	w.add("search @@ plainto_tsquery('simple', " + queryArg + ")")
	w.visibility(visibility)
	limitArg := w.arg(limit)

	query := `SELECT ` + incidentColumns + `, ts_rank(search, plainto_tsquery('simple', ` + queryArg + `)) AS rank
		FROM incidents` + w.clause() + `
		ORDER BY rank DESC, created_at DESC
		LIMIT ` + limitArg + `;`

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		var rank float32
		incident, err := scanIncident(rows, &rank)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row in Search: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration in Search: %w", err)
	}
	return incidents, nil
}

// Stats возвращает агрегаты по инцидентам, созданным начиная с since
func (r *IncidentRepository) Stats(ctx context.Context, since time.Time) (*models.IncidentStats, error) {
	stats := &models.IncidentStats{}
	var err error

	if stats.ByType, err = r.countBuckets(ctx, `
		SELECT type, COUNT(*) FROM incidents
		WHERE created_at >= $1
		GROUP BY type ORDER BY COUNT(*) DESC, type;
	`, since); err != nil {
		return nil, fmt.Errorf("failed to get stats by type: %w", err)
	}

	if stats.ByStatus, err = r.countBuckets(ctx, `
		SELECT status, COUNT(*) FROM incidents
		WHERE created_at >= $1
		GROUP BY status ORDER BY COUNT(*) DESC, status;
	`, since); err != nil {
		return nil, fmt.Errorf("failed to get stats by status: %w", err)
	}

	if stats.Trend, err = r.countBuckets(ctx, `
		SELECT to_char(date_trunc('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD'), COUNT(*)
		FROM incidents
		WHERE created_at >= $1
		GROUP BY 1 ORDER BY 1;
	`, since); err != nil {
		return nil, fmt.Errorf("failed to get stats trend: %w", err)
	}

	query := `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 60), 0)
		FROM incidents
		WHERE created_at >= $1 AND resolved_at IS NOT NULL;
	`
	if err := r.db.QueryRow(ctx, query, since).Scan(&stats.AverageResolutionMinutes); err != nil {
		return nil, fmt.Errorf("failed to get average resolution time: %w", err)
	}
	return stats, nil
}

// CountByStatus возвращает количество всех инцидентов по статусам
func (r *IncidentRepository) CountByStatus(ctx context.Context) (map[models.IncidentStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM incidents GROUP BY status;`)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.IncidentStatus]int)
	for rows.Next() {
		var status models.IncidentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error status count iteration: %w", err)
	}
	return counts, nil
}

func (r *IncidentRepository) countBuckets(ctx context.Context, query string, args ...any) ([]models.CountBucket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := make([]models.CountBucket, 0)
	for rows.Next() {
		var b models.CountBucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func incidentCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("incident:%s", id.String())
}

// GetIncidentFromCache пытается получить инцидент из Redis
func (r *IncidentRepository) GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	val, err := r.redisClient.Get(ctx, incidentCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// setIfNotOlder записывает инцидент, только если в кеше нет более новой версии.
// KEYS[1] - ключ, ARGV[1] - JSON, ARGV[2] - версия, ARGV[3] - TTL в миллисекундах (0 - без TTL).
var setIfNotOlder = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, doc = pcall(cjson.decode, cur)
	if ok and type(doc) == 'table' and tonumber(doc['version']) and tonumber(doc['version']) > tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// SetIncidentCache сохраняет инцидент в Redis.
// Запись с версией старше закешированной отбрасывается, поэтому чтение,
// начатое до обновления, не перезапишет свежие данные.
func (r *IncidentRepository) SetIncidentCache(ctx context.Context, incident *models.Incident) error {
	val, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	keys := []string{incidentCacheKey(incident.ID)}
	if err := setIfNotOlder.Run(ctx, r.redisClient, keys, val, incident.Version, r.cacheTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

// InvalidateIncidentCache удаляет инцидент из Redis кэша
func (r *IncidentRepository) InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error {
	if err := r.redisClient.Del(ctx, incidentCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate incident cache: %w", err)
	}
	return nil
}
