package service

import (
	"errors"

	"github.com/pkadima1/sharewizard-server/internal/model/dto"
	"github.com/pkadima1/sharewizard-server/internal/pkg/oss"
	"github.com/pkadima1/sharewizard-server/internal/repository"
)

var ErrAvatarTooLarge = errors.New("头像文件超过大小限制")

const maxAvatarSize = 2 << 20 // 2MB

type UserService struct {
	userRepo  *repository.UserRepository
	ossClient *oss.Client
}

func NewUserService(userRepo *repository.UserRepository, ossClient *oss.Client) *UserService {
	return &UserService{
		userRepo:  userRepo,
		ossClient: ossClient,
	}
}

// GetProfile 获取用户信息
func (s *UserService) GetProfile(userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return BuildUserInfo(user), nil
}

// UpdateProfile 更新用户信息
func (s *UserService) UpdateProfile(userID int64, req *dto.UpdateProfileRequest) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil && *req.Username != user.Username {
		exists, err := s.userRepo.ExistsByUsername(*req.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrUsernameExists
		}
		user.Username = *req.Username
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return BuildUserInfo(user), nil
}

// UploadAvatar 上传头像并更新用户记录
func (s *UserService) UploadAvatar(userID int64, data []byte, ext string) (string, error) {
	if len(data) > maxAvatarSize {
		return "", ErrAvatarTooLarge
	}

	url, err := s.ossClient.UploadAvatar(userID, data, ext)
	if err != nil {
		return "", err
	}

	if err := s.userRepo.UpdateFields(userID, map[string]interface{}{
		"avatar_url": url,
	}); err != nil {
		return "", err
	}
	return url, nil
}
