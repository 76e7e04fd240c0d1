package casdoor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// UserCasdoor resolves users from Casdoor with a read-through redis cache.
// School and classroom placement are carried in Casdoor user properties.
type UserCasdoor struct {
	client *casdoorsdk.Client
	redis  *redis.Client
	config CasdoorConfig

	cachePrefix string
	cacheTTL    time.Duration
}

func NewUserCasdoor(config CasdoorConfig, redisClient *redis.Client) repositories.UserRepository {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	return &UserCasdoor{
		client:      client,
		redis:       redisClient,
		config:      config,
		cachePrefix: "user:",
		cacheTTL:    15 * time.Minute,
	}
}

// ===== CACHE METHODS =====

func (u *UserCasdoor) getCacheKey(key string) string {
	return fmt.Sprintf("%s%s", u.cachePrefix, key)
}

func (u *UserCasdoor) getUserFromCache(ctx context.Context, key string) (*models.User, error) {
	if u.redis == nil {
		return nil, nil // Cache not available
	}

	cacheKey := u.getCacheKey(key)
	data, err := u.redis.Get(ctx, cacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached user: %w", err)
	}

	return &user, nil
}

func (u *UserCasdoor) setUserCache(ctx context.Context, key string, user *models.User) error {
	if u.redis == nil {
		return nil
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user for cache: %w", err)
	}

	cacheKey := u.getCacheKey(key)
	return u.redis.Set(ctx, cacheKey, data, u.cacheTTL).Err()
}

// ===== CONVERSION METHODS =====

func (u *UserCasdoor) convertCasdoorUserToModel(casdoorUser *casdoorsdk.User) *models.User {
	if casdoorUser == nil {
		return nil
	}

	var createdAt, updatedAt time.Time
	if casdoorUser.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, casdoorUser.CreatedTime)
	}
	if casdoorUser.UpdatedTime != "" {
		updatedAt, _ = time.Parse(time.RFC3339, casdoorUser.UpdatedTime)
	}

	var classroomID *string
	if cid := u.getPropertyOrDefault(casdoorUser.Properties, "classroomId", ""); cid != "" {
		classroomID = &cid
	}

	return &models.User{
		ID:          casdoorUser.Id,
		FullName:    casdoorUser.DisplayName,
		Email:       casdoorUser.Email,
		Role:        u.convertCasdoorRolesToModel(casdoorUser),
		SchoolID:    u.getPropertyOrDefault(casdoorUser.Properties, "schoolId", ""),
		ClassroomID: classroomID,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

func (u *UserCasdoor) convertCasdoorRolesToModel(casdoorUser *casdoorsdk.User) models.UserRole {
	if casdoorUser.IsAdmin {
		return models.RoleGlobalAdmin
	}

	for _, casdoorRole := range casdoorUser.Roles {
		mapped := u.mapSingleCasdoorRoleToUserRole(casdoorRole.Name)
		// Admin roles win regardless of ordering
		if mapped == models.RoleSchoolAdmin || mapped == models.RoleGlobalAdmin {
			return mapped
		}
	}

	if len(casdoorUser.Roles) > 0 {
		return u.mapSingleCasdoorRoleToUserRole(casdoorUser.Roles[0].Name)
	}

	return models.RoleStudent // Default role
}

func (u *UserCasdoor) mapSingleCasdoorRoleToUserRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "student":
		return models.RoleStudent
	case "teacher", "instructor":
		return models.RoleTeacher
	case "proctor", "invigilator":
		return models.RoleProctor
	case "school_admin", "principal":
		return models.RoleSchoolAdmin
	case "admin", "administrator":
		return models.RoleGlobalAdmin
	default:
		return models.RoleStudent
	}
}

func (u *UserCasdoor) getPropertyOrDefault(properties map[string]string, key, defaultValue string) string {
	if value, exists := properties[key]; exists {
		return value
	}
	return defaultValue
}

// ===== READ OPERATIONS =====

// GetByID retrieves a user by ID
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	cacheKey := fmt.Sprintf("id:%s", id)
	if cachedUser, err := u.getUserFromCache(ctx, cacheKey); err == nil && cachedUser != nil {
		return cachedUser, nil
	}

	casdoorUser, err := u.client.GetUserByUserId(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
	}

	if casdoorUser == nil {
		return nil, fmt.Errorf("user not found with ID %s", id)
	}

	user := u.convertCasdoorUserToModel(casdoorUser)
	if user == nil {
		return nil, fmt.Errorf("failed to convert Casdoor user")
	}

	u.setUserCache(ctx, cacheKey, user)

	return user, nil
}

// ListByClassroom retrieves every student placed in a classroom. Casdoor has
// no property filter in its pagination API, so this pages through the
// organization and filters locally; the per-classroom result is cached.
func (u *UserCasdoor) ListByClassroom(ctx context.Context, schoolID, classroomID string) ([]models.User, error) {
	cacheKey := fmt.Sprintf("classroom:%s:%s", schoolID, classroomID)
	if u.redis != nil {
		data, err := u.redis.Get(ctx, u.getCacheKey(cacheKey)).Result()
		if err == nil {
			var users []models.User
			if err := json.Unmarshal([]byte(data), &users); err == nil {
				return users, nil
			}
		}
	}

	var users []models.User
	const pageSize = 100
	for page := 1; ; page++ {
		casdoorUsers, count, err := u.client.GetPaginationUsers(page, pageSize, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get users from Casdoor: %w", err)
		}

		for _, casdoorUser := range casdoorUsers {
			user := u.convertCasdoorUserToModel(casdoorUser)
			if user == nil || user.Role != models.RoleStudent {
				continue
			}
			if user.SchoolID != schoolID {
				continue
			}
			if user.ClassroomID == nil || *user.ClassroomID != classroomID {
				continue
			}
			users = append(users, *user)
		}

		if page*pageSize >= count || len(casdoorUsers) == 0 {
			break
		}
	}

	if u.redis != nil {
		if data, err := json.Marshal(users); err == nil {
			u.redis.Set(ctx, u.getCacheKey(cacheKey), data, 5*time.Minute)
		}
	}

	return users, nil
}
