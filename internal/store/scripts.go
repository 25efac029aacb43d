package store

import "github.com/go-redis/redis/v8"

// 多步写入（记录 + 成员集合 + 时间索引）都在一个脚本里完成，
// 三个索引要么同时写入要么都不写。

// createRecordScript 应用与资源的创建
// KEYS: 1 记录, 2 成员集合, 3 时间索引
// ARGV: 1 成员集合成员, 2 时间索引成员, 3 分数, 之后为 field/value 对
// 返回 1 成功, 0 记录已存在
var createRecordScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
for i = 4, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[2])
return 1
`)

// createUserScript 用户创建，邮箱和用户名的检查与占用是原子的
// KEYS: 1 记录, 2 成员集合, 3 时间索引, 4 邮箱集合, 5 用户名哈希(name -> id)
// ARGV: 1 用户 id, 2 时间索引成员, 3 分数, 4 邮箱, 5 用户名, 之后为 field/value 对
// 返回 1 成功, 0 id 已存在, -1 邮箱占用, -2 用户名占用
var createUserScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
if redis.call('SISMEMBER', KEYS[4], ARGV[4]) == 1 then
  return -1
end
if redis.call('HEXISTS', KEYS[5], ARGV[5]) == 1 then
  return -2
end
for i = 6, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[2])
redis.call('SADD', KEYS[4], ARGV[4])
redis.call('HSET', KEYS[5], ARGV[5], ARGV[1])
return 1
`)

// updateRecordScript 仅更新仍属于租户的记录
// KEYS: 1 记录, 2 成员集合, 3 时间索引
// ARGV: 1 成员集合成员, 2 时间索引成员, 3 分数（空串表示不刷新时间）, 之后为 field/value 对
// 返回 1 成功, 0 不属于该租户
var updateRecordScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 0 then
  return 0
end
for i = 4, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
if ARGV[3] ~= '' then
  redis.call('ZADD', KEYS[3], ARGV[3], ARGV[2])
end
return 1
`)

// updateUserEmailScript 更换邮箱并同步唯一性集合
// KEYS: 1 记录, 2 成员集合, 3 邮箱集合, 4 时间索引
// ARGV: 1 用户 id, 2 时间索引成员, 3 分数, 4 新邮箱, 之后为 field/value 对
// 返回 1 成功, 0 不属于该租户, -1 新邮箱已被占用
var updateUserEmailScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 0 then
  return 0
end
local old = redis.call('HGET', KEYS[1], 'email')
if old ~= ARGV[4] then
  if redis.call('SISMEMBER', KEYS[3], ARGV[4]) == 1 then
    return -1
  end
  if old then
    redis.call('SREM', KEYS[3], old)
  end
  redis.call('SADD', KEYS[3], ARGV[4])
  redis.call('HSET', KEYS[1], 'email', ARGV[4])
end
for i = 5, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('ZADD', KEYS[4], ARGV[3], ARGV[2])
return 1
`)

// deleteAssetScript 物理删除资源：时间索引、成员集合、记录一起删除
// KEYS: 1 记录, 2 成员集合, 3 时间索引
// ARGV: 1 资源 id, 2 时间索引成员
// 返回 1 成功, 0 不属于该租户（只清理该租户名下的悬空时间索引）
var deleteAssetScript = redis.NewScript(`
if redis.call('SREM', KEYS[2], ARGV[1]) == 0 then
  redis.call('ZREM', KEYS[3], ARGV[2])
  return 0
end
redis.call('ZREM', KEYS[3], ARGV[2])
redis.call('DEL', KEYS[1])
return 1
`)

// deleteUserScript 逻辑删除用户：记录保留，alive=false，释放邮箱和用户名
// 用户名索引的键取自创建时写入记录的 userNameKey，不在脚本里重新计算
// KEYS: 1 记录, 2 成员集合, 3 时间索引, 4 失效用户集合, 5 邮箱集合, 6 用户名哈希
// ARGV: 1 用户 id, 2 时间索引成员
var deleteUserScript = redis.NewScript(`
if redis.call('SREM', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('ZREM', KEYS[3], ARGV[2])
redis.call('HSET', KEYS[1], 'alive', 'false')
redis.call('SADD', KEYS[4], ARGV[2])
local email = redis.call('HGET', KEYS[1], 'email')
if email then
  redis.call('SREM', KEYS[5], email)
end
local name = redis.call('HGET', KEYS[1], 'userNameKey')
if name and redis.call('HGET', KEYS[6], name) == ARGV[1] then
  redis.call('HDEL', KEYS[6], name)
end
return 1
`)

// updateAppScript 更新应用字段；失效应用不回到时间索引
// KEYS: 1 记录, 2 失效应用集合, 3 时间索引
// ARGV: 1 应用 id, 2 分数, 之后为 field/value 对
var updateAppScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 0 then
  redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
end
return 1
`)

// deleteAppScript 软删除应用
// KEYS: 1 记录, 2 失效应用集合, 3 时间索引
// ARGV: 1 应用 id
// 返回 1 成功, 0 不存在或已失效
var deleteAppScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'alive', 'false')
redis.call('ZREM', KEYS[3], ARGV[1])
return 1
`)

// reviveAppScript 恢复软删除的应用
// KEYS: 1 记录, 2 失效应用集合, 3 时间索引
// ARGV: 1 应用 id, 2 分数
var reviveAppScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('SREM', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], 'alive', 'true')
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
return 1
`)

// 修复脚本：报告生成后数据可能已变化，每一项先重新确认仍然不一致再修改。
// 返回 1 已修复, 0 已不再需要修复

// repairDanglingRecencyScript 移除悬空的时间索引条目
// KEYS: 1 时间索引, 2 成员集合, 3 记录（成员无法解析时只有 KEYS[1]）
// ARGV: 1 id, 2 时间索引成员
var repairDanglingRecencyScript = redis.NewScript(`
if #KEYS == 3 and redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 and redis.call('EXISTS', KEYS[3]) == 1 then
  return 0
end
return redis.call('ZREM', KEYS[1], ARGV[2])
`)

// repairDanglingMemberScript 移除没有记录的成员集合条目及其时间索引
// KEYS: 1 记录, 2 成员集合, 3 时间索引
// ARGV: 1 id, 2 时间索引成员
var repairDanglingMemberScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('ZREM', KEYS[3], ARGV[2])
return redis.call('SREM', KEYS[2], ARGV[1])
`)

// repairMissingRecencyScript 为记录补上时间索引，已有分数的不覆盖
// KEYS: 1 记录, 2 成员集合, 3 时间索引
// ARGV: 1 id, 2 时间索引成员, 3 分数
var repairMissingRecencyScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 0 or redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('ZSCORE', KEYS[3], ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[2])
return 1
`)
