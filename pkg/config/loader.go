package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig merges base.yaml with <env>.yaml from configDir (default
// "config"), substitutes ${VAR} placeholders from secrets.env and finally
// applies PH_* environment overrides. A missing env layer is not an error.
func LoadConfig(env string, configDir string) (map[string]interface{}, error) {
	if configDir == "" {
		configDir = "config"
	}

	merged, err := loadYAMLFile(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	if env != "" && env != "base" {
		layer, err := loadOptional(filepath.Join(configDir, env+".yaml"), loadYAMLFile)
		if err != nil {
			return nil, err
		}
		merged = mergeMaps(merged, layer)
	}

	secrets, err := loadOptional(filepath.Join(configDir, "secrets.env"), loadEnvFile)
	if err != nil {
		return nil, err
	}
	if len(secrets) > 0 {
		merged = substituteEnvVars(merged, secrets)
	}

	return overrideFromSystemEnv(merged, ""), nil
}

// loadOptional returns the zero value when path does not exist.
func loadOptional[T any](path string, load func(string) (T, error)) (T, error) {
	var zero T
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return zero, nil
	}
	v, err := load(path)
	if err != nil {
		return zero, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
	}
	return v, nil
}

// LoadInto runs LoadConfig and decodes the merged tree into out, so callers
// keep typed config structs while still getting the layered lookup.
func LoadInto(env, configDir string, out interface{}) error {
	merged, err := LoadConfig(env, configDir)
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to re-encode merged config: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode merged config: %w", err)
	}
	return nil
}

// loadYAMLFile 加载 YAML 文件
func loadYAMLFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config map[string]interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	if config == nil {
		config = make(map[string]interface{})
	}

	return config, nil
}

// loadEnvFile 加载 .env 文件
func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseEnv(string(data)), nil
}

func parseEnv(data string) map[string]string {
	env := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			// 移除引号
			value = strings.Trim(value, `"`)
			value = strings.Trim(value, `'`)
			env[key] = value
		}
	}
	return env
}

// mergeMaps 合并两个 map，dst 会被 src 覆盖
func mergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for k, v := range dst {
		result[k] = v
	}

	for k, v := range src {
		if dstMap, ok := result[k].(map[string]interface{}); ok {
			if srcMap, ok := v.(map[string]interface{}); ok {
				// 递归合并嵌套 map
				result[k] = mergeMaps(dstMap, srcMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}

// substituteEnvVars 替换配置中的环境变量占位符 ${VAR_NAME}
func substituteEnvVars(config map[string]interface{}, env map[string]string) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range config {
		switch val := v.(type) {
		case string:
			result[k] = substituteString(val, env)
		case map[string]interface{}:
			result[k] = substituteEnvVars(val, env)
		default:
			result[k] = v
		}
	}
	return result
}

// substituteString 替换字符串中的环境变量
func substituteString(s string, env map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	result := s
	for key, value := range env {
		placeholder := fmt.Sprintf("${%s}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// overrideFromSystemEnv replaces leaf string values with PH_<SECTION>_<KEY>
// environment variables when they are set, e.g. PH_DB_HOST for db.host.
func overrideFromSystemEnv(config map[string]interface{}, prefix string) map[string]interface{} {
	result := make(map[string]interface{}, len(config))
	for k, v := range config {
		name := strings.ToUpper(k)
		if prefix != "" {
			name = prefix + "_" + name
		}
		switch val := v.(type) {
		case map[string]interface{}:
			result[k] = overrideFromSystemEnv(val, name)
		default:
			if env, ok := os.LookupEnv("PH_" + name); ok {
				// 解析为 YAML 标量，保证 "5432" 能解码到 int 字段
				var parsed interface{}
				if err := yaml.Unmarshal([]byte(env), &parsed); err == nil && parsed != nil {
					result[k] = parsed
				} else {
					result[k] = env
				}
			} else {
				result[k] = val
			}
		}
	}
	return result
}

// GetEnv 获取环境变量，如果未设置则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 获取配置环境（从环境变量 CONFIG_ENV，默认为 local）
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
